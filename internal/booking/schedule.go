package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOptions tunes one schedule generation run. Zero values fall
// back to the service defaults. When Dates is set the horizon is
// ignored and only those dates are generated.
type GenerateOptions struct {
	DurationMinutes int      `json:"duration_minutes"`
	HorizonDays     int      `json:"horizon_days"`
	From            string   `json:"from"`
	Dates           []string `json:"dates"`
}

// GenerateSlots expands a doctor's weekly template into concrete slots
// over a rolling date window. Slots are keyed by
// (doctor, date, startTime), so re-running over any horizon, any
// number of times, creates nothing twice. Returns the number of slots
// actually created.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, template WeeklyTemplate, opts GenerateOptions) (int, error) {
	byDay, err := templateByDay(template)
	if err != nil {
		return 0, err
	}

	duration := opts.DurationMinutes
	if duration <= 0 {
		duration = s.cfg.SlotDurationMinutes
	}

	dates := opts.Dates
	if len(dates) == 0 {
		horizon := opts.HorizonDays
		if horizon <= 0 {
			horizon = s.cfg.HorizonDays
		}
		from := s.now().In(s.cfg.Location)
		if opts.From != "" {
			parsed, err := time.Parse(dateLayout, opts.From)
			if err != nil {
				return 0, fmt.Errorf("invalid from date %q: %w", opts.From, err)
			}
			from = parsed
		}
		for i := 0; i < horizon; i++ {
			dates = append(dates, from.AddDate(0, 0, i).Format(dateLayout))
		}
	}

	created := 0
	touched := make(map[string]bool)
	for _, date := range dates {
		day, err := weekdayName(date)
		if err != nil {
			return created, err
		}
		entry, ok := byDay[day]
		if !ok || !entry.Enabled {
			continue
		}

		start, err := clockToMinutes(entry.StartTime)
		if err != nil {
			return created, fmt.Errorf("template %s: %w", day, err)
		}
		end, err := clockToMinutes(entry.EndTime)
		if err != nil {
			return created, fmt.Errorf("template %s: %w", day, err)
		}
		if end <= start {
			continue
		}

		now := s.now()
		for at := start; at+duration <= end; at += duration {
			slot := &Slot{
				ID:              uuid.New(),
				DoctorID:        doctorID,
				Date:            date,
				StartTime:       minutesToClock(at),
				EndTime:         minutesToClock(at + duration),
				DurationMinutes: duration,
				Capacity:        1,
				Status:          SlotAvailable,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			ok, err := s.repo.CreateSlot(ctx, slot)
			if err != nil {
				return created, fmt.Errorf("create slot %s %s: %w", date, slot.StartTime, err)
			}
			if ok {
				created++
				touched[date] = true
			}
		}
	}

	s.metrics.ObserveSlotsGenerated(created)
	for date := range touched {
		s.slotsChanged(ctx, doctorID, date)
	}
	return created, nil
}

func templateByDay(template WeeklyTemplate) (map[string]TemplateDay, error) {
	byDay := make(map[string]TemplateDay, len(template))
	for _, entry := range template {
		day, ok := normalizeWeekday(entry.Day)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", entry.Day)
		}
		if _, dup := byDay[day]; dup {
			return nil, fmt.Errorf("duplicate weekday %q", entry.Day)
		}
		byDay[day] = entry
	}
	return byDay, nil
}

func normalizeWeekday(name string) (string, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return strings.ToLower(d.String()), true
		}
	}
	return "", false
}
