// Package version holds the process-wide feature-version registry: the
// table mapping protocol version to a concrete feature version for every
// method whose behavior can change between releases, plus the
// height-scoped patch mechanism used for hot fixes.
package version

import "fmt"

// PlatformVersion enumerates the feature version selected for every
// dispatch-by-version method at a given protocol version. Keys are
// "package.method" strings (e.g. "token.fetch.identity_token_balances");
// dispatch sites look themselves up by this key and switch on the
// returned number, rather than this package knowing about every method.
type PlatformVersion struct {
	ProtocolVersion uint32
	FeatureVersions map[string]uint16
}

// New builds a PlatformVersion for protocolVersion with the given
// method-version table.
func New(protocolVersion uint32, featureVersions map[string]uint16) *PlatformVersion {
	fv := make(map[string]uint16, len(featureVersions))
	for k, v := range featureVersions {
		fv[k] = v
	}
	return &PlatformVersion{ProtocolVersion: protocolVersion, FeatureVersions: fv}
}

// Clone returns a deep copy, used as the starting point for a patch
// function so patches never mutate the version they were handed.
func (pv *PlatformVersion) Clone() *PlatformVersion {
	return New(pv.ProtocolVersion, pv.FeatureVersions)
}

// Feature looks up the feature version selected for method.
func (pv *PlatformVersion) Feature(method string) (uint16, error) {
	v, ok := pv.FeatureVersions[method]
	if !ok {
		return 0, &UnknownMethodError{Method: method}
	}
	return v, nil
}

// WithFeature returns a copy of pv with method's feature version set to v.
func (pv *PlatformVersion) WithFeature(method string, v uint16) *PlatformVersion {
	next := pv.Clone()
	next.FeatureVersions[method] = v
	return next
}

// UnknownMethodError is returned when a dispatch site asks for a method
// the active PlatformVersion has no entry for at all (as opposed to
// UnknownVersionError, which is for a method whose version number is
// outside the range a dispatch site knows how to handle).
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("version: no feature version registered for method %q", e.Method)
}

// UnknownVersionError is returned by a dispatch site when the feature
// version it looked up is not one of the versions it implements.
type UnknownVersionError struct {
	Method   string
	Got      uint16
	Accepted []uint16
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("version: method %q has unknown feature version %d (accepted: %v)", e.Method, e.Got, e.Accepted)
}
