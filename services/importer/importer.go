package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
)

const defaultWeight = 1

type (
	// Result summarises an import.
	Result struct {
		Rows            int      `json:"rows"`
		SubjectsCreated int      `json:"subjects_created"`
		TopicsCreated   int      `json:"topics_created"`
		Skipped         int      `json:"skipped"`
		Errors          []string `json:"errors"`
	}

	row struct {
		line     int
		subject  string
		weight   int
		topic    string
		priority int
	}

	// Importer loads a curriculum (subject, weight, topic, priority rows) into a study plan.
	Importer struct {
		db     core.DB
		plans  plan.Repository
		logger core.Logger
	}
)

func NewImporter(db core.DB, plans plan.Repository, logger core.Logger) *Importer {
	return &Importer{db: db, plans: plans, logger: logger}
}

// ReadRows reads the rows of an xlsx (first sheet) or csv file.
func ReadRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening workbook")
		}
		defer func() { _ = f.Close() }()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheet")
		}
		rows, err := f.GetRows(sheets[0])
		return rows, errors.Wrap(err, "reading sheet")
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening csv")
		}
		defer func() { _ = file.Close() }()
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		rows, err := r.ReadAll()
		return rows, errors.Wrap(err, "reading csv")
	}
	return nil, errors.Errorf("unsupported file type %q", filepath.Ext(path))
}

// ImportFile imports the rows of the file at `path` into the plan.
func (imp *Importer) ImportFile(ctx context.Context, planID int64, path string) (Result, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return Result{}, err
	}
	return imp.Import(ctx, planID, rows)
}

// Import adds the rows' subjects and topics to the plan in one transaction.
// Subjects are matched by name with the plan's existing ones; topics already in a subject are skipped.
// Invalid rows are reported in Result.Errors and skipped.
func (imp *Importer) Import(ctx context.Context, planID int64, rows [][]string) (Result, error) {
	var res Result
	parsed := make([]row, 0, len(rows))
	for i, cells := range rows {
		if isBlank(cells) {
			continue
		}
		if i == 0 && isHeader(cells) {
			continue
		}
		res.Rows++
		r, err := parseRow(i+1, cells)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		parsed = append(parsed, r)
	}

	err := core.InTx(ctx, imp.db, func(tx core.DBExecutor) error {
		if _, err := imp.plans.GetPlan(ctx, planID, tx); err != nil {
			return err
		}
		subjects, err := imp.plans.ListSubjects(ctx, planID, tx)
		if err != nil {
			return errors.Wrap(err, "listing subjects")
		}
		return imp.apply(ctx, planID, subjects, parsed, &res, tx)
	})
	if err != nil {
		return Result{}, err
	}
	imp.logger.Info("curriculum imported", map[string]interface{}{
		"plan_id":  planID,
		"subjects": res.SubjectsCreated,
		"topics":   res.TopicsCreated,
		"skipped":  res.Skipped,
	})
	return res, nil
}

func (imp *Importer) apply(ctx context.Context, planID int64, subjects []plan.Subject, rows []row, res *Result, tx core.DBExecutor) error {
	type group struct {
		subject plan.Subject
		exists  bool
		known   map[string]bool
		next    int
		topics  []plan.Topic
	}
	groups := make(map[string]*group)
	order := make([]string, 0)
	for _, s := range subjects {
		g := &group{subject: s, exists: true, known: make(map[string]bool)}
		for _, t := range s.Topics {
			g.known[core.CleanString(t.Description, true)] = true
			if t.Priority > g.next {
				g.next = t.Priority
			}
		}
		groups[core.CleanString(s.Name, true)] = g
	}

	now := core.Now()
	for _, r := range rows {
		key := core.CleanString(r.subject, true)
		g, ok := groups[key]
		if !ok {
			g = &group{
				subject: plan.Subject{PlanID: planID, Name: r.subject, PriorityWeight: r.weight, CreatedAt: now},
				known:   make(map[string]bool),
			}
			groups[key] = g
		}
		desc := core.CleanString(r.topic, true)
		if g.known[desc] {
			res.Skipped++
			continue
		}
		g.known[desc] = true
		if len(g.topics) == 0 {
			order = append(order, key)
		}
		priority := r.priority
		if priority == 0 {
			priority = g.next + 1
		}
		if priority > g.next {
			g.next = priority
		}
		g.topics = append(g.topics, plan.Topic{
			Description: r.topic,
			Priority:    priority,
			Status:      plan.TopicPending,
			CreatedAt:   now,
		})
	}

	for _, key := range order {
		g := groups[key]
		sort.SliceStable(g.topics, func(i, j int) bool { return g.topics[i].Priority < g.topics[j].Priority })
		if !g.exists {
			g.subject.Topics = g.topics
			if _, err := imp.plans.CreateSubject(ctx, g.subject, tx); err != nil {
				return errors.Wrapf(err, "creating subject %q", g.subject.Name)
			}
			res.SubjectsCreated++
			res.TopicsCreated += len(g.topics)
			continue
		}
		if _, err := imp.plans.CreateTopics(ctx, g.subject.ID, g.topics, tx); err != nil {
			return errors.Wrapf(err, "adding topics to %q", g.subject.Name)
		}
		res.TopicsCreated += len(g.topics)
	}
	return nil
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return core.CleanString(cells[i])
	}
	return ""
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isHeader(cells []string) bool {
	switch core.CleanString(cell(cells, 0), true) {
	case "subject", "matéria", "materia", "disciplina":
		return true
	}
	return false
}

func parseRow(line int, cells []string) (row, error) {
	r := row{line: line, subject: cell(cells, 0), topic: cell(cells, 2), weight: defaultWeight}
	if r.subject == "" {
		return r, fmt.Errorf("line %d: missing subject", line)
	}
	if r.topic == "" {
		return r, fmt.Errorf("line %d: missing topic", line)
	}
	if w := cell(cells, 1); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 || n > 100 {
			return r, fmt.Errorf("line %d: invalid weight %q", line, w)
		}
		r.weight = n
	}
	if p := cell(cells, 3); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return r, fmt.Errorf("line %d: invalid priority %q", line, p)
		}
		r.priority = n
	}
	return r, nil
}
