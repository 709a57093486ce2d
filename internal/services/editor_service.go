package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patient-feedback/survey-console/internal/editor"
	"github.com/patient-feedback/survey-console/internal/events"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/patient-feedback/survey-console/internal/validator"
)

// EditorSnapshot is the state of one editor session as shown to its user.
type EditorSnapshot struct {
	SessionID    string                       `json:"session_id"`
	TemplateID   string                       `json:"template_id"`
	TemplateName string                       `json:"template_name"`
	Open         bool                         `json:"open"`
	Saving       bool                         `json:"saving"`
	Stale        bool                         `json:"stale"`
	Questions    []models.Question            `json:"questions"`
	Completeness validator.CompletenessReport `json:"completeness"`
}

// EditorService keeps one question editor per session. Sessions of different
// users, or of the same template opened twice, share nothing.
type EditorService interface {
	Open(ctx context.Context, p models.Principal, templateID string) (*EditorSnapshot, error)
	Snapshot(ctx context.Context, p models.Principal, sessionID string) (*EditorSnapshot, error)
	AddQuestion(ctx context.Context, p models.Principal, sessionID string) (*EditorSnapshot, error)
	UpdateQuestion(ctx context.Context, p models.Principal, sessionID, questionID, field string, value json.RawMessage) (*EditorSnapshot, error)
	RemoveQuestion(ctx context.Context, p models.Principal, sessionID, questionID string) (*EditorSnapshot, error)
	AddOption(ctx context.Context, p models.Principal, sessionID, questionID string) (*EditorSnapshot, error)
	UpdateOption(ctx context.Context, p models.Principal, sessionID, questionID string, index int, value string) (*EditorSnapshot, error)
	RemoveOption(ctx context.Context, p models.Principal, sessionID, questionID string, index int) (*EditorSnapshot, error)
	// Save submits the question set. The session ends on success and is kept on failure.
	Save(ctx context.Context, p models.Principal, sessionID string) error
	Close(ctx context.Context, p models.Principal, sessionID string) error
	// CloseIdle discards sessions untouched for longer than maxIdle and reports how many were closed.
	CloseIdle(maxIdle time.Duration) int
	// HandleTemplateEvent marks the open sessions of a changed template as stale.
	HandleTemplateEvent(ctx context.Context, event *events.TemplateEvent) error
}

type editorSession struct {
	id       string
	userID   string
	editor   *editor.Editor
	lastUsed time.Time
	// set when the template changed elsewhere after the session opened
	stale bool
}

type editorService struct {
	mu       sync.Mutex
	sessions map[string]*editorSession

	templates TemplateService
	validator *validator.Validator
	logger    utils.Logger
	svcLogger *ServiceLogger
	now       func() time.Time
}

func NewEditorService(templates TemplateService, v *validator.Validator, logger utils.Logger) EditorService {
	return &editorService{
		sessions:  make(map[string]*editorSession),
		templates: templates,
		validator: v,
		logger:    logger,
		svcLogger: NewServiceLogger(logger.Slog(), LogConfig{Service: "survey-console", Component: "editor"}),
		now:       time.Now,
	}
}

type principalKey struct{}

// saverFor routes an editor's save through the template service, using the
// principal of the request that triggered it.
func (s *editorService) saverFor(sessionID string) editor.Saver {
	return editor.SaverFunc(func(ctx context.Context, templateID string, questions models.QuestionMap) error {
		p, _ := ctx.Value(principalKey{}).(models.Principal)
		return s.templates.SaveQuestions(ContextWithSessionID(ctx, sessionID), p, templateID, questions)
	})
}

func (s *editorService) Open(ctx context.Context, p models.Principal, templateID string) (snap *EditorSnapshot, err error) {
	op := s.svcLogger.WithOperation(ctx, "open_editor", p.UserID)
	defer func() { op.LogResult(templateID, "editor_session", err) }()

	tpl, err := s.templates.Get(ctx, p, templateID)
	if err != nil {
		return nil, err
	}

	sess := &editorSession{
		id:       uuid.NewString(),
		userID:   p.UserID,
		lastUsed: s.now(),
	}
	sess.editor = editor.New(s.saverFor(sess.id))
	sess.editor.Open(tpl)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	return s.snapshot(sess), nil
}

func (s *editorService) Snapshot(ctx context.Context, p models.Principal, sessionID string) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

func (s *editorService) AddQuestion(ctx context.Context, p models.Principal, sessionID string) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	sess.editor.AddQuestion()
	return s.snapshot(sess), nil
}

// The mutations below leave the session unchanged when the question or
// option index is missing and still return its snapshot.

func (s *editorService) UpdateQuestion(ctx context.Context, p models.Principal, sessionID, questionID, field string, value json.RawMessage) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	update, err := editor.ParseFieldUpdate(field, value)
	if err != nil {
		return nil, err
	}
	s.logMiss(ctx, sess, "update_question", questionID, sess.editor.UpdateQuestion(questionID, update))
	return s.snapshot(sess), nil
}

func (s *editorService) RemoveQuestion(ctx context.Context, p models.Principal, sessionID, questionID string) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	s.logMiss(ctx, sess, "remove_question", questionID, sess.editor.RemoveQuestion(questionID))
	return s.snapshot(sess), nil
}

func (s *editorService) AddOption(ctx context.Context, p models.Principal, sessionID, questionID string) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	s.logMiss(ctx, sess, "add_option", questionID, sess.editor.AddOption(questionID))
	return s.snapshot(sess), nil
}

func (s *editorService) UpdateOption(ctx context.Context, p models.Principal, sessionID, questionID string, index int, value string) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	s.logMiss(ctx, sess, "update_option", questionID, sess.editor.UpdateOption(questionID, index, value), "index", index)
	return s.snapshot(sess), nil
}

func (s *editorService) RemoveOption(ctx context.Context, p models.Principal, sessionID, questionID string, index int) (*EditorSnapshot, error) {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return nil, err
	}
	s.logMiss(ctx, sess, "remove_option", questionID, sess.editor.RemoveOption(questionID, index), "index", index)
	return s.snapshot(sess), nil
}

func (s *editorService) Save(ctx context.Context, p models.Principal, sessionID string) (err error) {
	op := s.svcLogger.WithOperation(ctx, "save_editor", p.UserID)
	defer func() { op.LogResult(sessionID, "editor_session", err) }()

	sess, err := s.session(p, sessionID)
	if err != nil {
		return err
	}

	if err = sess.editor.Save(context.WithValue(ctx, principalKey{}, p)); err != nil {
		return err
	}

	s.drop(sessionID)
	return nil
}

func (s *editorService) Close(ctx context.Context, p models.Principal, sessionID string) error {
	sess, err := s.session(p, sessionID)
	if err != nil {
		return err
	}
	sess.editor.Close()
	s.drop(sessionID)
	return nil
}

func (s *editorService) CloseIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) && !sess.editor.IsSaving() {
			sess.editor.Close()
			delete(s.sessions, id)
			closed++
		}
	}
	return closed
}

func (s *editorService) HandleTemplateEvent(ctx context.Context, event *events.TemplateEvent) error {
	switch event.Type {
	case events.EventTemplateQuestionsUpdated, events.EventTemplateDeleted:
	default:
		return nil
	}

	s.mu.Lock()
	marked := 0
	for id, sess := range s.sessions {
		if id == event.Data.SessionID || sess.stale || sess.editor.TemplateID() != event.Data.TemplateID {
			continue
		}
		sess.stale = true
		marked++
	}
	s.mu.Unlock()

	if marked > 0 {
		s.logger.InfoContext(ctx, "Marked editor sessions stale",
			"template_id", event.Data.TemplateID,
			"event_type", event.Type,
			"count", marked)
	}
	return nil
}

// ===== HELPERS =====

func (s *editorService) session(p models.Principal, sessionID string) (*editorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.userID != p.UserID {
		return nil, ErrSessionNotOwned
	}
	sess.lastUsed = s.now()
	return sess, nil
}

func (s *editorService) drop(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *editorService) logMiss(ctx context.Context, sess *editorSession, operation, questionID string, applied bool, fields ...interface{}) {
	if applied {
		return
	}
	fields = append([]interface{}{"operation", operation, "session_id", sess.id, "question_id", questionID}, fields...)
	s.logger.DebugContext(ctx, "Editor mutation left session unchanged", fields...)
}

func (s *editorService) snapshot(sess *editorSession) *EditorSnapshot {
	questions := sess.editor.Questions()
	s.mu.Lock()
	stale := sess.stale
	s.mu.Unlock()
	return &EditorSnapshot{
		SessionID:    sess.id,
		TemplateID:   sess.editor.TemplateID(),
		TemplateName: sess.editor.TemplateName(),
		Open:         sess.editor.IsOpen(),
		Saving:       sess.editor.IsSaving(),
		Stale:        stale,
		Questions:    questions,
		Completeness: s.validator.Question().Check(questions),
	}
}
