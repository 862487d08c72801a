package chunker

import (
	"regexp"
	"unicode/utf8"

	"github.com/yooventa/tubetalk/internal/utils"
)

// Config controls fragment sizing. Overlap must be smaller than ChunkSize.
type Config struct {
	ChunkSize int
	Overlap   int
}

// Fragment is one slice of a transcript. Start/End are byte offsets into the
// source text; Content == transcript[Start:End].
type Fragment struct {
	Index   int
	Content string
	Start   int
	End     int
}

// TimeRange is an approximate caption time span in seconds.
type TimeRange struct {
	StartSeconds int
	EndSeconds   int
}

// Split cuts transcript into overlapping fragments. Splitting is
// deterministic: the same transcript and config always produce the same
// boundaries, which is what makes re-ingestion idempotency checkable.
//
// Within the last fifth of each chunk a sentence or paragraph boundary is
// preferred over a hard cut, so fragments rarely end mid-sentence.
func Split(transcript string, cfg Config) ([]Fragment, error) {
	const op = "chunker.Split"

	if cfg.ChunkSize <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chunk size must be positive", nil)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		return nil, utils.E(utils.CodeInvalidArgument, op, "overlap must be smaller than chunk size", nil)
	}
	if transcript == "" {
		return nil, nil
	}

	tolerance := cfg.ChunkSize / 5

	var frags []Fragment
	start := 0
	for idx := 0; ; idx++ {
		end := start + cfg.ChunkSize
		if end >= len(transcript) {
			end = len(transcript)
		} else {
			end = adjustEnd(transcript, start, end, tolerance)
		}

		frags = append(frags, Fragment{
			Index:   idx,
			Content: transcript[start:end],
			Start:   start,
			End:     end,
		})

		if end == len(transcript) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return frags, nil
}

// adjustEnd moves a prospective cut point back to the nearest sentence or
// paragraph boundary inside the tolerance window, falling back to a rune
// boundary when no better cut exists.
func adjustEnd(text string, start, end, tolerance int) int {
	lo := end - tolerance
	if lo <= start {
		lo = start + 1
	}
	for i := end - 1; i >= lo; i-- {
		switch text[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	// Hard cut; never split a rune.
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

var timestampRe = regexp.MustCompile(`(\d+):(\d{2}) - `)

// TimestampRanges derives an approximate caption time range for each
// fragment when the transcript carries "m:ss - text" markers (the format the
// caption fetcher produces). Fragments without any marker before them get a
// nil entry. The result is index-aligned with frags.
func TimestampRanges(transcript string, frags []Fragment) []*TimeRange {
	marks := timestampRe.FindAllStringSubmatchIndex(transcript, -1)
	out := make([]*TimeRange, len(frags))
	if len(marks) == 0 {
		return out
	}

	// secondsAtOrBefore returns the last marker starting at or before pos.
	secondsAtOrBefore := func(pos int) (int, bool) {
		found := -1
		for _, m := range marks {
			if m[0] > pos {
				break
			}
			found = atoi(transcript[m[2]:m[3]])*60 + atoi(transcript[m[4]:m[5]])
		}
		if found < 0 {
			return 0, false
		}
		return found, true
	}

	for i, f := range frags {
		s, okS := secondsAtOrBefore(f.Start)
		e, okE := secondsAtOrBefore(f.End - 1)
		if !okS && !okE {
			continue
		}
		if !okS {
			s = 0
		}
		out[i] = &TimeRange{StartSeconds: s, EndSeconds: e}
	}
	return out
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
