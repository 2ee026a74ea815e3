package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

const (
	essayEveryDays     = 7
	retaFinalReviewDay = 3
)

type (
	Options struct {
		ReviewMode plan.ReviewMode
		RetaFinal  bool
		HasEssay   bool
	}

	// Entry is a generated session, before it is bound to a plan and persisted.
	Entry struct {
		Date        time.Time    `json:"session_date"`
		Type        session.Type `json:"session_type"`
		TopicID     int64        `json:"topic_id,omitempty"` // 0 for essays
		SubjectName string       `json:"subject_name"`
		Description string       `json:"description"`
		Sequence    int          `json:"sequence"`
	}

	Schedule struct {
		Entries        []Entry
		Capacity       int
		Unscheduled    []TopicRef
		Dropped        []Exclusion
		SkippedReviews int
		SkippedEssays  int
		RetaFinal      bool
	}
)

// Deficit returns the number of pending topics that did not get a session.
func (s Schedule) Deficit() int { return len(s.Unscheduled) + len(s.Dropped) }

func (s Schedule) Count(typ session.Type) int {
	var n int
	for _, e := range s.Entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// Generate allocates the pending topics of subjects over cal and injects reviews and essays.
// With reta final enabled, a plan with more pending topics than slots is first compressed
// to its most important topics and reviews collapse to a single D+3 one.
func Generate(subjects []plan.Subject, cal Calendar, opts Options) (Schedule, error) {
	capacity, err := cal.Capacity()
	if err != nil {
		return Schedule{}, err
	}

	var dropped []Exclusion
	if pending, active := countPending(subjects); opts.RetaFinal && pending > capacity {
		keep := capacity
		if len(opts.ReviewMode.Intervals()) > 0 {
			// half of the slots stay free for the single review of each kept topic,
			// but never at the expense of one topic per subject
			keep = (capacity + 1) / 2
			if floor := min(active, capacity); keep < floor {
				keep = floor
			}
		}
		subjects, dropped = Compress(subjects, keep)
	}

	alloc, err := Allocate(subjects, cal)
	if err != nil {
		return Schedule{}, err
	}
	alloc.Dropped = dropped
	return Inject(alloc, subjects, opts), nil
}

// countPending returns the number of pending topics and of subjects having some.
func countPending(subjects []plan.Subject) (topics, active int) {
	for _, s := range subjects {
		if n := len(s.PendingTopics()); n > 0 {
			topics += n
			active++
		}
	}
	return topics, active
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// reviewPrefix starts the description of the D+days review of a topic.
func reviewPrefix(days int) string {
	return fmt.Sprintf("Revisão D+%d:", days)
}

// board tracks free slots of the study days.
type board struct {
	days []Day
	exam time.Time
}

// firstFree returns the index of the first day on or after date with a free slot, or -1.
func (b *board) firstFree(date time.Time) int {
	i := sort.Search(len(b.days), func(i int) bool { return !b.days[i].Date.Before(date) })
	for ; i < len(b.days); i++ {
		if b.days[i].Free() > 0 {
			return i
		}
	}
	return -1
}

// lastFree returns the index of the last day within [from, to] with a free slot, or -1.
func (b *board) lastFree(from, to time.Time) int {
	for i := len(b.days) - 1; i >= 0; i-- {
		d := b.days[i].Date
		if d.After(to) {
			continue
		}
		if d.Before(from) {
			break
		}
		if b.days[i].Free() > 0 {
			return i
		}
	}
	return -1
}

// Inject completes alloc with essay and review sessions, placed in the slots left free
// by new topics, and orders every day's sessions after the kept ones.
// Completed topics of subjects keep their reviews: they are scheduled from the completion
// date when that falls within the window. A review or a weekly essay that already has a
// kept session is not scheduled again.
func Inject(alloc Allocation, subjects []plan.Subject, opts Options) Schedule {
	sched := Schedule{
		Capacity:    alloc.Capacity(),
		Unscheduled: alloc.Unscheduled,
		Dropped:     alloc.Dropped,
		RetaFinal:   len(alloc.Dropped) > 0,
	}
	b := &board{days: append([]Day(nil), alloc.Days...), exam: core.DateOf(alloc.Exam)}

	entries := make([]Entry, 0, len(alloc.Assignments))
	for _, a := range alloc.Assignments {
		entries = append(entries, Entry{
			Date:        a.Date,
			Type:        session.TypeNewTopic,
			TopicID:     a.TopicID,
			SubjectName: a.SubjectName,
			Description: a.Description,
		})
	}

	keptReviews := make(map[int64][]string)
	var keptEssays []time.Time
	for _, k := range alloc.Kept {
		switch {
		case k.Type == session.TypeReview && k.TopicID.Valid:
			keptReviews[k.TopicID.Int64] = append(keptReviews[k.TopicID.Int64], k.Description)
		case k.Type == session.TypeEssay:
			keptEssays = append(keptEssays, core.DateOf(k.SessionDate))
		}
	}
	reviewKept := func(topicID int64, days int) bool {
		for _, desc := range keptReviews[topicID] {
			if strings.HasPrefix(desc, reviewPrefix(days)) {
				return true
			}
		}
		return false
	}
	essayKept := func(from, to time.Time) bool {
		for _, d := range keptEssays {
			if !d.Before(from) && !d.After(to) {
				return true
			}
		}
		return false
	}

	if opts.HasEssay {
		start := core.DateOf(alloc.Start)
		var n int
		for ws := start; ws.Before(b.exam); ws = core.AddDays(ws, essayEveryDays) {
			n++
			we := core.AddDays(ws, essayEveryDays-1)
			if essayKept(ws, we) {
				continue
			}
			i := b.lastFree(ws, we)
			if i < 0 {
				sched.SkippedEssays++
				continue
			}
			b.days[i].Used++
			entries = append(entries, Entry{
				Date:        b.days[i].Date,
				Type:        session.TypeEssay,
				SubjectName: "Redação",
				Description: fmt.Sprintf("Redação semanal %d", n),
			})
		}
	}

	intervals := opts.ReviewMode.Intervals()
	if sched.RetaFinal && len(intervals) > 0 {
		intervals = []int{retaFinalReviewDay}
	}
	if len(intervals) > 0 {
		start := core.DateOf(alloc.Start)
		review := func(origin time.Time, subjectName string, topicID int64, desc string) {
			for _, days := range intervals {
				due := core.AddDays(core.DateOf(origin), days)
				if due.Before(start) || reviewKept(topicID, days) {
					continue
				}
				i := -1
				if due.Before(b.exam) {
					i = b.firstFree(due)
				}
				if i < 0 {
					sched.SkippedReviews++
					continue
				}
				b.days[i].Used++
				entries = append(entries, Entry{
					Date:        b.days[i].Date,
					Type:        session.TypeReview,
					TopicID:     topicID,
					SubjectName: subjectName,
					Description: reviewPrefix(days) + " " + desc,
				})
			}
		}

		for _, a := range alloc.Assignments {
			review(a.Date, a.SubjectName, a.TopicID, a.Description)
		}
		for _, s := range subjects {
			for _, t := range s.Topics {
				if t.IsCompleted() && t.CompletedAt.Valid {
					review(t.CompletedAt.Time, s.Name, t.ID, t.Description)
				}
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].Type.Rank() < entries[j].Type.Rank()
	})
	lastSeq := make(map[time.Time]int, len(b.days))
	for _, d := range b.days {
		lastSeq[d.Date] = d.LastSeq
	}
	var seq int
	for i := range entries {
		if i == 0 || !entries[i].Date.Equal(entries[i-1].Date) {
			seq = lastSeq[entries[i].Date]
		}
		seq++
		entries[i].Sequence = seq
	}
	sched.Entries = entries
	return sched
}
