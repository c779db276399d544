package probe

import "time"

// Result is the outcome for one receiver.
type Result struct {
	ReceiverID string
	// Connected is the time from sending the offer to the data channel opening.
	Connected time.Duration
	RTTs      []time.Duration
	Err       error
}

// Stats returns the minimum, mean and maximum round trip. All are zero when
// no ping completed.
func (r Result) Stats() (lo, mean, hi time.Duration) {
	if len(r.RTTs) == 0 {
		return 0, 0, 0
	}
	lo, hi = r.RTTs[0], r.RTTs[0]
	var sum time.Duration
	for _, d := range r.RTTs {
		sum += d
		lo = min(lo, d)
		hi = max(hi, d)
	}
	return lo, sum / time.Duration(len(r.RTTs)), hi
}

// Report summarizes a probe run.
type Report struct {
	RoomID  string
	Elapsed time.Duration
	Results []Result
}

// Failed counts receivers that did not complete every ping.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

func (r *Report) OK() bool { return r.Failed() == 0 }
