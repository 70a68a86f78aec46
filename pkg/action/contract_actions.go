package action

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/contract"
)

// dataContractCreateAction inserts a brand new contract record.
type dataContractCreateAction struct {
	c *contract.Contract
}

func (a *dataContractCreateAction) Apply(ctx *drive.Context) error {
	return contract.Insert(ctx, a.c)
}

// NewDataContractCreateAction returns the Action that creates c.
func NewDataContractCreateAction(c *contract.Contract) Action {
	return &dataContractCreateAction{c: c}
}

// dataContractUpdateAction replaces a contract's schema, requiring it be
// declared mutable and archiving the prior version when history is kept.
type dataContractUpdateAction struct {
	prior, next  *contract.Contract
	updateTimeMs uint64
}

func (a *dataContractUpdateAction) Apply(ctx *drive.Context) error {
	if !a.prior.Mutable {
		return drive.ErrContractImmutable
	}
	return contract.Update(ctx, a.prior, a.next, a.updateTimeMs)
}

// NewDataContractUpdateAction returns the Action that replaces prior's
// schema with next, stamped at updateTimeMs.
func NewDataContractUpdateAction(prior, next *contract.Contract, updateTimeMs uint64) Action {
	return &dataContractUpdateAction{prior: prior, next: next, updateTimeMs: updateTimeMs}
}
