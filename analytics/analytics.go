// Package analytics summarizes a service list for the stats screen.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fanyicharllson/whichemail/model"
)

const (
	recentWindow = 30 * 24 * time.Hour
	week         = 7 * 24 * time.Hour
	weeks        = 4
	topEmails    = 5
)

// Summary is the computed view of one owner's services.
type Summary struct {
	TotalServices   int             `json:"totalServices"`
	UniqueEmails    int             `json:"uniqueEmails"`
	WithPassword    int             `json:"withPassword"`
	WithoutPassword int             `json:"withoutPassword"`
	Categories      []CategoryCount `json:"categories"`
	RecentServices  int             `json:"recentServices"`
	Weekly          []WeekCount     `json:"weekly"`
	TopEmails       []EmailCount    `json:"topEmails"`
	SecurityScore   int             `json:"securityScore"`
	EmailUsage      []EmailUsage    `json:"emailUsage"`
}

type CategoryCount struct {
	CategoryID string `json:"categoryId"`
	Count      int    `json:"count"`
}

type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

type EmailCount struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

// EmailUsage groups the services registered with one address.
type EmailUsage struct {
	Email    string          `json:"email"`
	Count    int             `json:"count"`
	Services []model.Service `json:"services"`
}

// Compute builds the summary of list as seen at now. Services without a
// category are left out of the category counts; services with an
// unparseable creation time are left out of the time based counts.
func Compute(list []model.Service, now time.Time) Summary {
	s := Summary{
		TotalServices: len(list),
		Categories:    []CategoryCount{},
		Weekly:        make([]WeekCount, weeks),
		TopEmails:     []EmailCount{},
	}

	categories := map[string]int{}
	for i := range s.Weekly {
		s.Weekly[i].Week = fmt.Sprintf("W%d", i+1)
	}

	for _, svc := range list {
		if svc.HasPassword {
			s.WithPassword++
		}
		if svc.CategoryID != "" {
			categories[svc.CategoryID]++
		}

		created, ok := parseTime(svc.CreatedAt)
		if !ok {
			continue
		}
		if !created.Before(now.Add(-recentWindow)) {
			s.RecentServices++
		}
		if i, ok := weekIndex(created, now); ok {
			s.Weekly[i].Count++
		}
	}
	s.WithoutPassword = s.TotalServices - s.WithPassword

	for id, n := range categories {
		s.Categories = append(s.Categories, CategoryCount{CategoryID: id, Count: n})
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		a, b := s.Categories[i], s.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.CategoryID < b.CategoryID
	})

	s.EmailUsage = GroupByEmail(list)
	s.UniqueEmails = len(s.EmailUsage)
	for i, u := range s.EmailUsage {
		if i == topEmails {
			break
		}
		s.TopEmails = append(s.TopEmails, EmailCount{Email: u.Email, Count: u.Count})
	}

	s.SecurityScore = int(math.Round(float64(s.WithPassword) / float64(max(s.TotalServices, 1)) * 100))
	return s
}

// GroupByEmail groups services by exact email address, most used first.
// Services keep their list order within a group.
func GroupByEmail(list []model.Service) []EmailUsage {
	index := map[string]int{}
	out := []EmailUsage{}
	for _, svc := range list {
		i, ok := index[svc.Email]
		if !ok {
			i = len(out)
			index[svc.Email] = i
			out = append(out, EmailUsage{Email: svc.Email})
		}
		out[i].Count++
		out[i].Services = append(out[i].Services, svc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Email < out[j].Email
	})
	return out
}

// weekIndex places t in one of the four weeks ending at now, oldest first.
func weekIndex(t, now time.Time) (int, bool) {
	start := now.Add(-weeks * week)
	if t.Before(start) || !t.Before(now) {
		return 0, false
	}
	return int(t.Sub(start) / week), true
}

func parseTime(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	return t, err == nil
}
