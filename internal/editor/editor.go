// Package editor holds the in-memory question editor for one survey template.
package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/questionset"
)

var (
	ErrEditorClosed      = errors.New("editor is not open")
	ErrSaveInProgress    = errors.New("a save is already in progress")
	ErrUnknownField      = errors.New("unknown question field")
	ErrInvalidFieldValue = errors.New("invalid value for question field")
)

const questionIDPrefix = "question_"

// Saver submits an encoded question set as a partial update of the template.
type Saver interface {
	SaveQuestions(ctx context.Context, templateID string, questions models.QuestionMap) error
}

// SaverFunc adapts a function to the Saver interface
type SaverFunc func(ctx context.Context, templateID string, questions models.QuestionMap) error

func (f SaverFunc) SaveQuestions(ctx context.Context, templateID string, questions models.QuestionMap) error {
	return f(ctx, templateID, questions)
}

// Editor is the question editor of a single template. All mutations are
// no-ops on unknown ids; nothing is validated before Save.
type Editor struct {
	mu sync.Mutex

	templateID   string
	templateName string
	questions    []models.Question
	open         bool
	saving       bool

	// every id handed out or loaded during this session, so deleted ids are never reissued
	issued map[string]struct{}
	newID  func() string
	saver  Saver
}

type Option func(*Editor)

// WithIDGenerator replaces the uuid based question id generator
func WithIDGenerator(gen func() string) Option {
	return func(e *Editor) {
		e.newID = gen
	}
}

func New(saver Saver, opts ...Option) *Editor {
	e := &Editor{
		saver:  saver,
		issued: make(map[string]struct{}),
		newID: func() string {
			return questionIDPrefix + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open loads the template's persisted questions and shows the editor. When the
// raw questions document is available its key order becomes the display order.
func (e *Editor) Open(t *models.SurveyTemplate) {
	questions := questionset.Decode(t.Questions)
	if len(t.RawQuestions) > 0 {
		if ordered, err := questionset.DecodeJSON(t.RawQuestions); err == nil {
			questions = ordered
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templateID = t.ID
	e.templateName = t.Name
	e.questions = questions
	for _, q := range questions {
		e.issued[q.ID] = struct{}{}
	}
	e.open = true
}

// Close hides the editor and drops unsaved edits.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.open = false
	e.questions = nil
}

func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *Editor) IsSaving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

func (e *Editor) TemplateID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.templateID
}

func (e *Editor) TemplateName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.templateName
}

// Questions returns a copy of the current list in display order
func (e *Editor) Questions() []models.Question {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Question, len(e.questions))
	for i, q := range e.questions {
		out[i] = q.Clone()
	}
	return out
}

func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.questions)
}

// AddQuestion appends an empty short_text question with a fresh id.
func (e *Editor) AddQuestion() models.Question {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.newID()
	for {
		if _, taken := e.issued[id]; !taken {
			break
		}
		id = e.newID()
	}
	e.issued[id] = struct{}{}

	q := models.Question{
		ID:   id,
		Type: models.ShortText,
	}
	e.questions = append(e.questions, q)
	return q.Clone()
}

// UpdateQuestion replaces one field of the question with the given id.
// It reports whether a question was found.
func (e *Editor) UpdateQuestion(id string, update FieldUpdate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 || update == nil {
		return false
	}
	update.apply(&e.questions[i])
	return true
}

func (e *Editor) RemoveQuestion(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	e.questions = append(e.questions[:i], e.questions[i+1:]...)
	return true
}

// AddOption appends an empty option to the question's options.
func (e *Editor) AddOption(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	q := &e.questions[i]
	q.Options = append(append([]string{}, q.Options...), "")
	return true
}

func (e *Editor) UpdateOption(id string, index int, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	q := &e.questions[i]
	if index < 0 || index >= len(q.Options) {
		return false
	}
	options := append([]string{}, q.Options...)
	options[index] = value
	q.Options = options
	return true
}

func (e *Editor) RemoveOption(id string, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	q := &e.questions[i]
	if index < 0 || index >= len(q.Options) {
		return false
	}
	options := make([]string, 0, len(q.Options)-1)
	options = append(options, q.Options[:index]...)
	options = append(options, q.Options[index+1:]...)
	q.Options = options
	return true
}

// Save encodes the current list and submits it. On success the editor closes;
// on failure the edits are kept so the caller can retry.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return ErrEditorClosed
	}
	if e.saving {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	payload, err := questionset.Encode(e.questions)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.saving = true
	templateID := e.templateID
	e.mu.Unlock()

	err = e.saver.SaveQuestions(ctx, templateID, payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		return err
	}
	e.open = false
	return nil
}

func (e *Editor) indexOf(id string) int {
	for i := range e.questions {
		if e.questions[i].ID == id {
			return i
		}
	}
	return -1
}
