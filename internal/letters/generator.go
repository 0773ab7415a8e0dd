// Package letters renders admission letters as plain text files in the
// blob store.
package letters

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/storage"
)

// DefaultDir is the blob store directory letters go to when none is set.
const DefaultDir = "admission_letters"

const letterText = `ADMISSION LETTER
Reference: {{.Reference}}
Date: {{.Date}}

Dear {{.StudentName}},

We are pleased to confirm your admission to {{.CourseName}}{{if .Department}}, Department of {{.Department}}{{end}}.
{{- if .Level}}
Programme level: {{.Level}}
{{- end}}
{{- if .Amount}}
Admission fee received: INR {{.Amount}}{{if .PaymentID}} (payment {{.PaymentID}}){{end}}
{{- end}}

Please bring this letter and your original documents to the admission office.

Admissions Office
`

type letterData struct {
	Reference   string
	Date        string
	StudentName string
	CourseName  string
	Department  string
	Level       string
	Amount      string
	PaymentID   string
}

// Generator writes one file per letter.
type Generator struct {
	store *storage.LocalStore
	dir   string
	tmpl  *template.Template
	now   func() time.Time
}

func NewGenerator(store *storage.LocalStore, dir string) *Generator {
	if dir == "" {
		dir = DefaultDir
	}
	return &Generator{
		store: store,
		dir:   dir,
		tmpl:  template.Must(template.New("letter").Parse(letterText)),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders the letter for a and returns its storage key.
func (g *Generator) Generate(ctx context.Context, a *model.Application, course *model.Course) (string, error) {
	if a == nil {
		return "", fmt.Errorf("letters: nil application")
	}
	d := letterData{
		Reference:   fmt.Sprintf("ADM-%d", a.ID),
		Date:        g.now().Format("02 January 2006"),
		StudentName: a.StudentName,
		CourseName:  a.CourseName,
		Department:  a.Department,
	}
	if course != nil {
		d.CourseName = course.Name
		d.Department = course.Department
		d.Level = course.Level
	}
	if d.CourseName == "" {
		d.CourseName = "the programme"
	}
	if a.Payment.AmountPaise != nil {
		d.Amount = rupees(*a.Payment.AmountPaise)
	}
	if a.Payment.PaymentID != nil {
		d.PaymentID = *a.Payment.PaymentID
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render letter %d: %w", a.ID, err)
	}
	key, err := g.store.Save(ctx, g.dir, "admission_"+strconv.FormatUint(a.ID, 10)+"_", ".txt", &buf, 0)
	if err != nil {
		return "", fmt.Errorf("store letter %d: %w", a.ID, err)
	}
	return key, nil
}

func rupees(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}
