package forecast

import "math/rand/v2"

func newTestSource(seed uint64) rand.Source { return rand.NewPCG(seed, seed+1) }
