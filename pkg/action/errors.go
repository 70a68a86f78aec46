package action

import (
	"errors"

	"github.com/driveplatform/drive/pkg/consensuserrors"
	"github.com/driveplatform/drive/pkg/drive"
)

func basicError(err error) error {
	return consensuserrors.Wrap(consensuserrors.CategoryBasic, consensuserrors.CodeSchemaViolation, err.Error(), err)
}

func signatureError(err error) error {
	code := consensuserrors.CodeSignatureInvalid
	switch {
	case errors.Is(err, ErrKeyNotFound):
		code = consensuserrors.CodeMissingKey
	case errors.Is(err, ErrKeyPurposeMismatch):
		code = consensuserrors.CodeWrongKeyPurpose
	case errors.Is(err, ErrKeyDisabled):
		code = consensuserrors.CodeMissingKey
	}
	return consensuserrors.Wrap(consensuserrors.CategorySignature, code, err.Error(), err)
}

func stateError(err error) error {
	code := consensuserrors.CodeInvariantViolation
	switch {
	case errors.Is(err, ErrNonceStale):
		code = consensuserrors.CodeNonceStale
	case errors.Is(err, ErrNonceTooFarAhead):
		code = consensuserrors.CodeNonceAlreadyUsed
	case errors.Is(err, drive.ErrDocumentRevisionMismatch):
		code = consensuserrors.CodeDocumentRevisionMismatch
	case errors.Is(err, drive.ErrDocumentAlreadyExists):
		code = consensuserrors.CodeDocumentAlreadyPresent
	case errors.Is(err, drive.ErrDocumentNotFound):
		code = consensuserrors.CodeDocumentNotFound
	case errors.Is(err, drive.ErrContestedResourceLocked):
		code = consensuserrors.CodeContestedResourceLocked
	case errors.Is(err, drive.ErrContractAlreadyExists):
		code = consensuserrors.CodeContractAlreadyPresent
	case errors.Is(err, drive.ErrContractImmutable):
		code = consensuserrors.CodeContractNotMutable
	case errors.Is(err, drive.ErrInsufficientBalance):
		code = consensuserrors.CodeTokenBalanceTooLow
	case errors.Is(err, drive.ErrFrozen):
		code = consensuserrors.CodeUnauthorizedTokenAction
	case errors.Is(err, drive.ErrGroupActionNotFound), errors.Is(err, drive.ErrGroupThresholdNotMet):
		code = consensuserrors.CodeGroupActionNotApproved
	case errors.Is(err, drive.ErrGroupActionParamsLocked):
		code = consensuserrors.CodeGroupActionParamsLocked
	}
	return consensuserrors.Wrap(consensuserrors.CategoryState, code, err.Error(), err)
}

func feeError(err error) error {
	return consensuserrors.Wrap(consensuserrors.CategoryFee, consensuserrors.CodeInsufficientBalance, err.Error(), err)
}

// Pipeline-native sentinel errors (not already owned by a domain module),
// wrapped into a consensuserrors.Error at the pipeline boundary above.
var (
	ErrUnsupportedVersion = errors.New("action: unsupported state transition version")
	ErrNonceStale         = errors.New("action: nonce is not greater than the stored value")
	ErrNonceTooFarAhead   = errors.New("action: nonce skips ahead of the stored value")
	ErrKeyNotFound        = errors.New("action: signer has no key with the given id")
	ErrKeyDisabled        = errors.New("action: signing key is disabled")
	ErrKeyPurposeMismatch = errors.New("action: signing key does not satisfy the required purpose/security level")
	ErrSignatureInvalid   = errors.New("action: signature verification failed")
	ErrInsufficientForFee = errors.New("action: balance does not cover the required portion of the fee")
)
