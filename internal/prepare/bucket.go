package prepare

import "fmt"

const lamportsPerSol = 1_000_000_000

// bucketBoundsSol are the fixed public thresholds, in SOL, the disclosure
// buckets are cut at. The disclosed value is always a threshold bound,
// never the witness balance itself.
var bucketBoundsSol = []uint64{1, 10, 100, 1000}

// BalanceBucket is the redacted disclosure value for a balance proof: the
// half-open range the balance falls in.
type BalanceBucket struct {
	LowLamports  uint64
	HighLamports uint64 // 0 means unbounded
}

func (b BalanceBucket) Label() string {
	if b.HighLamports == 0 {
		return fmt.Sprintf("%d+ SOL", b.LowLamports/lamportsPerSol)
	}
	return fmt.Sprintf("%d-%d SOL", b.LowLamports/lamportsPerSol, b.HighLamports/lamportsPerSol)
}

// BucketFor maps a balance onto its disclosure bucket.
func BucketFor(lamports uint64) BalanceBucket {
	bucket := BalanceBucket{LowLamports: 0, HighLamports: bucketBoundsSol[0] * lamportsPerSol}

	for i, bound := range bucketBoundsSol {
		low := bound * lamportsPerSol
		if lamports < low {
			break
		}
		bucket.LowLamports = low
		if i+1 < len(bucketBoundsSol) {
			bucket.HighLamports = bucketBoundsSol[i+1] * lamportsPerSol
		} else {
			bucket.HighLamports = 0
		}
	}

	return bucket
}
