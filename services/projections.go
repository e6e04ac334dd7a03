package services

import (
	"context"
	"sort"
	"time"

	"customsdesk-backend/models"
	"customsdesk-backend/utils"

	"github.com/google/uuid"
)

type BoardColumn struct {
	State     models.ProcessState `json:"state"`
	Label     string              `json:"label"`
	Count     int                 `json:"count"`
	Processes []ProcessDetail     `json:"processes"`
}

// Board groups processes into one column per workflow state. Every state
// gets a column, empty or not.
func Board(ps []models.Process, at time.Time) []BoardColumn {
	cols := make([]BoardColumn, len(models.ProcessStates))
	index := make(map[models.ProcessState]int, len(cols))
	for i, st := range models.ProcessStates {
		cols[i] = BoardColumn{State: st, Label: st.Label(), Processes: []ProcessDetail{}}
		index[st] = i
	}
	for _, p := range ps {
		i, ok := index[p.State]
		if !ok {
			continue
		}
		cols[i].Processes = append(cols[i].Processes, NewProcessDetail(p, at))
		cols[i].Count++
	}
	return cols
}

type ClientGroup struct {
	ClientID   uuid.UUID        `json:"clientId"`
	ClientName string           `json:"clientName"`
	Processes  []models.Process `json:"processes"`
}

// GroupByClient keeps the first-seen order of clients.
func GroupByClient(ps []models.Process) []ClientGroup {
	var groups []ClientGroup
	index := map[uuid.UUID]int{}
	for _, p := range ps {
		i, ok := index[p.ClientID]
		if !ok {
			name := ""
			if p.Client != nil {
				name = p.Client.Name
			}
			groups = append(groups, ClientGroup{ClientID: p.ClientID, ClientName: name})
			i = len(groups) - 1
			index[p.ClientID] = i
		}
		groups[i].Processes = append(groups[i].Processes, p)
	}
	return groups
}

type CalendarDay struct {
	Date      string           `json:"date"`
	Processes []models.Process `json:"processes"`
}

// Calendar buckets processes by due day within [from, to]. Processes
// without a due date are left out.
func Calendar(ps []models.Process, from, to time.Time) []CalendarDay {
	from = utils.BeginningOfDay(from)
	to = utils.EndOfDay(to)

	byDay := map[string][]models.Process{}
	for _, p := range ps {
		if p.DueDate == nil || p.DueDate.Before(from) || p.DueDate.After(to) {
			continue
		}
		key := p.DueDate.Format("2006-01-02")
		byDay[key] = append(byDay[key], p)
	}

	days := make([]CalendarDay, 0, len(byDay))
	for k, v := range byDay {
		days = append(days, CalendarDay{Date: k, Processes: v})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// Overdue returns the open processes past their due date, oldest first.
func Overdue(ps []models.Process, at time.Time) []models.Process {
	var out []models.Process
	for _, p := range ps {
		if p.IsOverdue(at) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out
}

func (s *ProcessService) Board(ctx context.Context, f ProcessFilter) ([]BoardColumn, error) {
	f.State = ""
	ps, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return Board(ps, timeNow()), nil
}

func (s *ProcessService) ByClient(ctx context.Context, f ProcessFilter) ([]ClientGroup, error) {
	ps, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return GroupByClient(ps), nil
}

func (s *ProcessService) Calendar(ctx context.Context, from, to time.Time) ([]CalendarDay, error) {
	if to.Before(from) {
		return nil, invalid("to cannot be before from")
	}
	start, end := utils.BeginningOfDay(from), utils.EndOfDay(to)
	ps, err := s.List(ctx, ProcessFilter{DueFrom: &start, DueTo: &end})
	if err != nil {
		return nil, err
	}
	return Calendar(ps, from, to), nil
}

func (s *ProcessService) Overdue(ctx context.Context) ([]models.Process, error) {
	now := timeNow()
	ps, err := s.List(ctx, ProcessFilter{DueTo: &now})
	if err != nil {
		return nil, err
	}
	return Overdue(ps, now), nil
}
