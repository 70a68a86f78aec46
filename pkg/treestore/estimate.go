package treestore

// EstimateCost implements Store. It never reads or writes state: every
// op's size is derived purely from layerInfo (falling back to the small
// built-in default for any path it doesn't describe), so the result is a
// deterministic, conservative upper bound a caller can compute before
// deciding whether a signer can afford the transition at all.
func (s *MemStore) EstimateCost(batch *Batch, layerInfo EstimatedLayerInfo) (CostVector, error) {
	var total CostVector

	for _, op := range batch.Ops() {
		info := layerInfo.lookup(op.Path)

		switch op.Kind {
		case OpInsert:
			size := estimatedElementSize(op.Element, info)
			// Worst case: assume replace (existing average-sized element
			// freed, new element added) so estimate mode never undercounts.
			total.StorageBytesAdded += size
			total.StorageBytesReplaced += info.AverageElementSize
			total.CPUUnits += estimateCPUForInsert(info)

		case OpDelete:
			total.StorageBytesFreed += info.AverageElementSize
			total.CPUUnits += 1

		case OpDeleteUpTreeWhileEmpty:
			// Worst case prunes MaxHeight ancestor subtree markers in
			// addition to the leaf itself.
			total.StorageBytesFreed += info.AverageElementSize * uint64(op.MaxHeight+1)
			total.CPUUnits += uint64(op.MaxHeight + 1)
		}
	}

	return total, nil
}

func estimatedElementSize(el *Element, info LayerInfo) uint64 {
	if el == nil {
		return info.AverageElementSize
	}
	size := uint64(len(el.ItemValue))
	for _, seg := range el.ReferencePath {
		size += uint64(len(seg))
	}
	size += uint64(len(el.RootHash)) + 8 // + Sum/SumItemValue worst case
	if el.Flags != nil {
		size += uint64(len(el.Flags.OwnerID)) + uint64(len(el.Flags.RefundEpochByteCounts))*12 + 8
	}
	if size == 0 {
		return info.AverageElementSize
	}
	return size
}

func estimateCPUForInsert(info LayerInfo) uint64 {
	// Worst-case cost of re-deriving a subtree's Merkle root after an
	// insert is proportional to the number of members it might hold
	// (log2 hashing steps per member, approximated linearly here since
	// the exact tree shape is unknown in estimate mode).
	if info.EstimatedElementCount == 0 {
		return 1
	}
	return info.EstimatedElementCount
}
