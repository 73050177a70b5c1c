package searcher

// PlanQueryCount returns how many candidates to request from the index.
//
// Line-range (chunk) results are requested exactly. Whole-file results are
// oversampled by multiplier, capped at the collection size, so the reranker
// has a wider pool to pick nResult files from. A product below one still
// requests one candidate. A non-positive multiplier requests every record.
func PlanQueryCount(total, nResult int, multiplier float64, lineRanges bool) int {
	if lineRanges {
		return nResult
	}
	if multiplier > 0 {
		n := max(int(float64(nResult)*multiplier), 1)
		if n > total {
			return total
		}
		return n
	}
	return total
}
