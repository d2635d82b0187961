// Package sink renders and writes pipeline results.
package sink

import (
	"strconv"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// Line is one rendered output unit: a result value and the target it belongs to.
type Line struct {
	Result string
	Target string
}

func (l Line) String() string { return l.Result + " " + l.Target }

// Render returns one line per payload element of a Success, and nothing for
// Empty or Failure outcomes.
func Render(r domain.Result) []Line {
	o := r.Outcome
	if o.Kind != domain.KindSuccess {
		return nil
	}
	if o.Response != nil {
		return []Line{{Result: strconv.Itoa(o.Response.StatusCode), Target: string(r.Target)}}
	}
	lines := make([]Line, 0, len(o.Values))
	for _, v := range o.Values {
		lines = append(lines, Line{Result: v, Target: string(r.Target)})
	}
	return lines
}
