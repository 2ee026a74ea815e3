package schedule

import (
	"container/heap"
	"sort"
	"time"

	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

type (
	// TopicRef identifies a topic together with its subject.
	TopicRef struct {
		TopicID     int64  `db:"topic_id" json:"topic_id"`
		SubjectID   int64  `db:"subject_id" json:"subject_id"`
		SubjectName string `db:"subject_name" json:"subject_name"`
		Description string `db:"topic_description" json:"topic_description"`
		Priority    int    `db:"priority" json:"priority"`
	}

	// Assignment is a new-topic session placed on a day.
	Assignment struct {
		Date time.Time
		TopicRef
	}

	Allocation struct {
		Start       time.Time
		Exam        time.Time
		Days        []Day // Used counts the kept sessions and the assigned new-topic slots
		Kept        []session.Session
		Assignments []Assignment
		Unscheduled []TopicRef
		Dropped     []Exclusion
		capacity    int
	}
)

// Capacity returns the number of slots that were free before the allocation.
func (a Allocation) Capacity() int { return a.capacity }

func refOf(s plan.Subject, t plan.Topic) TopicRef {
	return TopicRef{TopicID: t.ID, SubjectID: s.ID, SubjectName: s.Name, Description: t.Description, Priority: t.Priority}
}

// sortedPending returns the pending topics of s by priority, then id.
func sortedPending(s plan.Subject) []plan.Topic {
	topics := s.PendingTopics()
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Priority != topics[j].Priority {
			return topics[i].Priority < topics[j].Priority
		}
		return topics[i].ID < topics[j].ID
	})
	return topics
}

// queued is a subject taking part in the weighted rotation.
type queued struct {
	subject plan.Subject
	topics  []plan.Topic
	next    int
	weight  int64
	credit  int64
	picks   int
	index   int
}

// creditQueue is a max-heap on credit, ties broken by the lower subject id.
type creditQueue []*queued

func (q creditQueue) Len() int { return len(q) }

func (q creditQueue) Less(i, j int) bool {
	if q[i].credit != q[j].credit {
		return q[i].credit > q[j].credit
	}
	return q[i].subject.ID < q[j].subject.ID
}

func (q creditQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *creditQueue) Push(x interface{}) {
	item := x.(*queued)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *creditQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

type pick struct {
	q     *queued
	topic plan.Topic
}

// Allocate distributes the pending topics of subjects over the calendar slots.
//
// Subjects share the slots in proportion to their priority weight (smooth weighted
// round robin: every turn each subject earns its weight, the richest one is picked and
// pays the total). Subjects of weight 0 only get slots once every weighted subject ran
// out of topics, except that when there are at least as many slots as subjects, every
// subject with pending topics gets at least one.
func Allocate(subjects []plan.Subject, cal Calendar) (Allocation, error) {
	days, err := cal.Days()
	if err != nil {
		return Allocation{}, err
	}
	alloc := Allocation{Start: cal.Start, Exam: cal.Exam, Days: days, Kept: cal.Kept, capacity: capacityOf(days)}

	active := activeSubjects(subjects)
	picks := rotate(active, alloc.capacity)
	picks = ensureFloor(active, picks, alloc.capacity)

	// sequential placement
	var di int
	for _, p := range picks {
		for alloc.Days[di].Free() == 0 {
			di++
		}
		alloc.Days[di].Used++
		alloc.Assignments = append(alloc.Assignments, Assignment{Date: alloc.Days[di].Date, TopicRef: refOf(p.q.subject, p.topic)})
	}

	for _, q := range active {
		for _, t := range q.topics[q.next:] {
			alloc.Unscheduled = append(alloc.Unscheduled, refOf(q.subject, t))
		}
	}
	return alloc, nil
}

// activeSubjects returns the subjects with pending topics, by id.
func activeSubjects(subjects []plan.Subject) []*queued {
	active := make([]*queued, 0, len(subjects))
	for _, s := range subjects {
		topics := sortedPending(s)
		if len(topics) == 0 {
			continue
		}
		w := int64(s.PriorityWeight)
		if w < 0 {
			w = 0
		}
		active = append(active, &queued{subject: s, topics: topics, weight: w})
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].subject.ID < active[j].subject.ID })
	return active
}

func rotate(active []*queued, capacity int) []pick {
	var pending int
	weighted := make(creditQueue, 0, len(active))
	unweighted := make([]*queued, 0)
	for _, q := range active {
		pending += len(q.topics)
		if q.weight > 0 {
			weighted = append(weighted, q)
		} else {
			unweighted = append(unweighted, q)
		}
	}
	n := pending
	if capacity < n {
		n = capacity
	}

	pool := weighted
	if len(pool) == 0 {
		pool, unweighted = join(pool, unweighted), nil
	}
	var total int64
	for _, q := range pool {
		total += q.weight
	}

	picks := make([]pick, 0, n)
	for len(picks) < n {
		if pool.Len() == 0 {
			if len(unweighted) == 0 {
				break
			}
			pool, unweighted = join(pool, unweighted), nil
			for _, q := range pool {
				total += q.weight
			}
		}

		for _, q := range pool {
			q.credit += q.weight
		}
		heap.Init(&pool)
		top := pool[0]
		picks = append(picks, pick{q: top, topic: top.topics[top.next]})
		top.next++
		top.picks++
		top.credit -= total
		if top.next == len(top.topics) {
			heap.Remove(&pool, 0)
			total -= top.weight
		}
	}
	return picks
}

// join adds weight-0 subjects to the pool, competing as weight 1.
func join(pool creditQueue, subjects []*queued) creditQueue {
	for _, q := range subjects {
		q.weight = 1
		q.credit = 0
		q.index = len(pool)
		pool = append(pool, q)
	}
	return pool
}

// ensureFloor gives one slot to every active subject left without any, taking the last
// pick of the subject holding the most picks.
func ensureFloor(active []*queued, picks []pick, capacity int) []pick {
	if capacity < len(active) {
		return picks
	}
	for _, q := range active {
		if q.picks > 0 {
			continue
		}
		var donor *queued
		for _, d := range active {
			if d.picks < 2 {
				continue
			}
			if donor == nil || d.picks > donor.picks || (d.picks == donor.picks && d.subject.ID > donor.subject.ID) {
				donor = d
			}
		}
		if donor == nil {
			break
		}
		for i := len(picks) - 1; i >= 0; i-- {
			if picks[i].q == donor {
				picks[i] = pick{q: q, topic: q.topics[0]}
				break
			}
		}
		donor.next--
		donor.picks--
		q.next, q.picks = 1, 1
	}
	return picks
}
