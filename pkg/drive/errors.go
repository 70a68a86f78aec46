package drive

import "errors"

// Sentinel errors returned by the batch engine and domain modules. Domain
// modules wrap these with consensuserrors at the pipeline boundary; inside
// pkg/drive callers compare against these directly.
var (
	ErrIdentityNotFound      = errors.New("drive: identity not found")
	ErrContractNotFound      = errors.New("drive: data contract not found")
	ErrDocumentNotFound      = errors.New("drive: document not found")
	ErrDocumentAlreadyExists = errors.New("drive: document already exists")
	ErrDocumentRevisionMismatch = errors.New("drive: document revision does not strictly exceed the prior revision")
	ErrContestedResourceLocked = errors.New("drive: index entry is locked pending a contested-resource vote")
	ErrTokenNotFound         = errors.New("drive: token not found")
	ErrInsufficientBalance   = errors.New("drive: insufficient balance")
	ErrNegativeSupply        = errors.New("drive: token supply would go negative")
	ErrMaxSupplyExceeded     = errors.New("drive: token max supply exceeded")
	ErrFrozen                = errors.New("drive: identity is frozen for this token")
	ErrOutpointSpent         = errors.New("drive: asset lock outpoint already spent")
	ErrGroupActionNotFound   = errors.New("drive: group action not found")
	ErrGroupThresholdNotMet  = errors.New("drive: group action threshold not yet met")
	ErrGroupActionParamsLocked = errors.New("drive: group action has already received an approval and can no longer be changed")
	ErrNoMatchingIndex       = errors.New("drive: no index matches the query's where clauses")
	ErrInvalidLimit          = errors.New("drive: query limit out of bounds")
	ErrContractImmutable     = errors.New("drive: data contract is not mutable")
	ErrContractAlreadyExists = errors.New("drive: data contract already exists")
	ErrDocumentNotTransferable = errors.New("drive: document type is not transferable")
)
