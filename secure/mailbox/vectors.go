package mailbox

import "github.com/calyptra/trustedge/secure/psa"

// vectorStage keeps per-slot local copies of a call's I/O descriptors so
// dispatch never reads descriptors out of non-secure memory after
// validation. The original output array is kept only to write final
// lengths back on completion.
type vectorStage struct {
	in          [psa.MaxIOVec]psa.InVec
	out         [psa.MaxIOVec]psa.OutVec
	originalOut []psa.OutVec
	outLen      uint32
	inUse       bool
}

type stageTable [NumQueueSlots]vectorStage

// stage copies at most MaxIOVec input and output descriptors into the
// slot's staging entry. On any validation failure nothing is staged and the
// entry keeps its previous (unused) state. Unset tail entries are zeroed so
// no descriptor from a prior call survives.
func (t *stageTable) stage(p *InvokeParams, idx uint8) error {
	if idx >= NumQueueSlots {
		return ErrInvalidParams
	}
	if (p.InVecs == nil && p.InLen != 0) || (p.OutVecs == nil && p.OutLen != 0) {
		return ErrInvalidParams
	}
	if p.InLen > psa.MaxIOVec || p.OutLen > psa.MaxIOVec || p.InLen+p.OutLen > psa.MaxIOVec {
		return ErrInvalidParams
	}
	// A declared count beyond the supplied array would over-read in the
	// reference protocol; here it is simply malformed input.
	if uint32(len(p.InVecs)) < p.InLen || uint32(len(p.OutVecs)) < p.OutLen {
		return ErrInvalidParams
	}

	st := &t[idx]
	for i := uint32(0); i < psa.MaxIOVec; i++ {
		if i < p.InLen {
			st.in[i] = p.InVecs[i]
		} else {
			st.in[i] = psa.InVec{}
		}
	}
	for i := uint32(0); i < psa.MaxIOVec; i++ {
		if i < p.OutLen {
			st.out[i] = p.OutVecs[i]
		} else {
			st.out[i] = psa.OutVec{}
		}
	}

	st.outLen = p.OutLen
	st.originalOut = p.OutVecs
	st.inUse = true
	return nil
}

// writeBack copies the staged output lengths into the caller's original
// descriptors. Only the declared count is written, in order, and only for a
// successful result. The entry is always released.
func (t *stageTable) writeBack(idx uint8, result psa.Status) {
	if idx >= NumQueueSlots {
		return
	}
	st := &t[idx]
	if st.inUse && result == psa.Success {
		for i := uint32(0); i < st.outLen; i++ {
			st.originalOut[i].Len = st.out[i].Len
		}
	}
	st.inUse = false
	st.originalOut = nil
	st.outLen = 0
}

// inputs and outputs expose the staged descriptor windows for dispatch.
func (t *stageTable) inputs(idx uint8, n uint32) []psa.InVec {
	return t[idx].in[:n]
}

func (t *stageTable) outputs(idx uint8, n uint32) []psa.OutVec {
	return t[idx].out[:n]
}
