package repository

import "github.com/retzger/centraldogma/internal/engineerr"

// normalize resolves a caller-supplied Revision against head, per
// spec.md section 3: positive values must not exceed head; non-positive
// values are relative (0 and -1 both mean head, -2 the parent of head,
// and so on).
func normalize(r Revision, head int64) (int64, error) {
	n := int64(r)
	if n > 0 {
		if n > head {
			return 0, engineerr.Newf(engineerr.RevisionNotFound, "revision %d is beyond head %d", n, head).WithRevision(n)
		}
		return n, nil
	}
	if n == 0 {
		n = -1
	}
	abs := head + n + 1
	if abs <= 0 {
		return 0, engineerr.Newf(engineerr.RevisionNotFound, "relative revision %d has no target before head %d", n, head).WithRevision(n)
	}
	return abs, nil
}

// normalizeRange resolves both ends of a RevisionRange, preserving which
// end the caller meant as "from" versus "to" for result-ordering
// purposes by callers that need it.
func normalizeRange(rr RevisionRange, head int64) (from, to int64, err error) {
	from, err = normalize(rr.From, head)
	if err != nil {
		return 0, 0, err
	}
	to, err = normalize(rr.To, head)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}
