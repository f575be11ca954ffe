package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/services"
	"github.com/goliatone/go-errors"
)

const (
	AppName    = "WhichEmail"
	AppVersion = "1.1.4"

	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "txt"

	dateLayout = "2006-01-02"
)

// CSVHeader is the first record of every CSV export.
var CSVHeader = []string{"Service Name", "Email", "Category", "Website", "Has Password", "Created Date"}

// Backup is the document written by JSON.
type Backup struct {
	App           string          `json:"app"`
	Version       string          `json:"version"`
	ExportDate    string          `json:"exportDate"`
	TotalServices int             `json:"totalServices"`
	Services      []BackupService `json:"services"`
}

// BackupService is the exported subset of a service.
type BackupService struct {
	ServiceName string  `json:"serviceName"`
	Email       string  `json:"email"`
	CategoryID  string  `json:"categoryId"`
	Website     *string `json:"website,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	HasPassword bool    `json:"hasPassword"`
	CreatedAt   string  `json:"createdAt"`
}

// NewBackup builds the backup document for list at now.
func NewBackup(list []model.Service, now time.Time) Backup {
	out := make([]BackupService, 0, len(list))
	for _, s := range list {
		out = append(out, BackupService{
			ServiceName: s.ServiceName,
			Email:       s.Email,
			CategoryID:  s.CategoryID,
			Website:     s.Website,
			Notes:       s.Notes,
			HasPassword: s.HasPassword,
			CreatedAt:   s.CreatedAt,
		})
	}
	return Backup{
		App:           AppName,
		Version:       AppVersion,
		ExportDate:    services.FormatTimestamp(now),
		TotalServices: len(list),
		Services:      out,
	}
}

// JSON writes the backup document indented by two spaces.
func JSON(w io.Writer, list []model.Service, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewBackup(list, now)); err != nil {
		return writeError(FormatJSON, err)
	}
	return nil
}

// CSV writes one record per service after CSVHeader.
func CSV(w io.Writer, list []model.Service) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return writeError(FormatCSV, err)
	}
	for _, s := range list {
		record := []string{
			s.ServiceName,
			s.Email,
			orNA(s.CategoryID),
			orNA(deref(s.Website)),
			yesNo(s.HasPassword),
			createdDate(s.CreatedAt),
		}
		if err := cw.Write(record); err != nil {
			return writeError(FormatCSV, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return writeError(FormatCSV, err)
	}
	return nil
}

// Text writes a numbered summary meant for sharing as a message.
func Text(w io.Writer, list []model.Service, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Data Export\n", AppName)
	fmt.Fprintf(&b, "Date: %s\n", now.UTC().Format(dateLayout))
	fmt.Fprintf(&b, "Total Services: %d\n\n", len(list))

	for i, s := range list {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.ServiceName)
		fmt.Fprintf(&b, "   Email: %s\n", s.Email)
		if website := deref(s.Website); website != "" {
			fmt.Fprintf(&b, "   Website: %s\n", website)
		}
		fmt.Fprintf(&b, "   Password Saved: %s\n\n", yesNo(s.HasPassword))
	}
	fmt.Fprintf(&b, "---\nExported from %s\n", AppName)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return writeError(FormatText, err)
	}
	return nil
}

// FileName returns the suggested file name for format at now.
func FileName(format string, now time.Time) (string, error) {
	ms := now.UnixMilli()
	switch format {
	case FormatJSON:
		return fmt.Sprintf("whichemail_backup_%d.json", ms), nil
	case FormatCSV:
		return fmt.Sprintf("whichemail_export_%d.csv", ms), nil
	case FormatText:
		return fmt.Sprintf("whichemail_export_%d.txt", ms), nil
	}
	return "", errors.New("unsupported export format: "+format, errors.CategoryBadInput).
		WithTextCode("EXPORT_UNSUPPORTED_FORMAT").
		WithMetadata(map[string]any{"format": format})
}

// Write renders list in format.
func Write(w io.Writer, format string, list []model.Service, now time.Time) error {
	switch format {
	case FormatJSON:
		return JSON(w, list, now)
	case FormatCSV:
		return CSV(w, list)
	case FormatText:
		return Text(w, list, now)
	}
	_, err := FileName(format, now)
	return err
}

func createdDate(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeError(format string, err error) error {
	return errors.Wrap(err, errors.CategoryInternal, "failed to write "+format+" export").
		WithTextCode("EXPORT_WRITE_FAILED")
}
