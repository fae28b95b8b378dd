package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/core/translate"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
)

const (
	FunctionTranslation = "admin-ai-translation"
	FunctionPreferences = "user-preferences"
	FunctionTherapyChat = "ai-therapy-chat"
)

type functionCall struct {
	Action string `json:"action"`
}

// action handles one {action, ...params} call; raw is the whole body.
type action func(c *gin.Context, raw []byte) (any, error)

type function struct {
	admin   bool
	actions map[string]action
}

// FunctionsHandler serves the edge function surface at
// POST /functions/v1/:name.
type FunctionsHandler struct {
	svc       *Services
	auth      *Authenticator
	functions map[string]function
	now       func() time.Time
}

func NewFunctionsHandler(r *gin.Engine, svc *Services, auth *Authenticator) *FunctionsHandler {
	handler := &FunctionsHandler{svc: svc, auth: auth, now: time.Now}
	handler.functions = map[string]function{
		FunctionTranslation: {admin: true, actions: map[string]action{
			"translate":       handler.translateText,
			"translate_batch": handler.translateBatch,
			"list_languages":  handler.listLanguages,
		}},
		FunctionPreferences: {actions: map[string]action{
			"get":    handler.getPreferences,
			"update": handler.updatePreferences,
			"reset":  handler.resetPreferences,
		}},
		FunctionTherapyChat: {actions: map[string]action{
			"start_session": handler.startSession,
			"send_message":  handler.sendMessage,
			"end_session":   handler.endSession,
		}},
	}

	group := r.Group("/functions/v1", auth.Middleware())
	group.POST("/:name", handler.Invoke)
	return handler
}

func (h *FunctionsHandler) Invoke(c *gin.Context) {
	name := c.Param("name")
	fn, ok := h.functions[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf(i18n.T("functions_error_unknown_function"), name)})
		return
	}
	if fn.admin && !c.GetBool(ctxIsAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": i18n.T("functions_error_forbidden")})
		return
	}
	if !fn.admin && userID(c) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": i18n.T("functions_error_unauthorized")})
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var call functionCall
	if err = json.Unmarshal(raw, &call); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	act, ok := fn.actions[call.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(i18n.T("functions_error_unknown_action"), call.Action)})
		return
	}

	debuglog.Debug(debuglog.Detailed, "function %s/%s for %q\n", name, call.Action, userID(c))
	result, err := act(c, raw)
	if err != nil {
		debuglog.Debug(debuglog.Basic, "function %s/%s failed: %v\n", name, call.Action, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid(fmt.Errorf("invalid parameters: %w", err))
	}
	return nil
}

// admin-ai-translation

type translateParams struct {
	Text           string   `json:"text"`
	Texts          []string `json:"texts"`
	TargetLanguage string   `json:"target_language"`
	SourceLanguage string   `json:"source_language"`
}

func (h *FunctionsHandler) translator() (*translate.Translator, error) {
	if h.svc.Translator == nil {
		return nil, errors.New("translation is not configured")
	}
	return h.svc.Translator, nil
}

func (h *FunctionsHandler) translateText(c *gin.Context, raw []byte) (any, error) {
	var p translateParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	t, err := h.translator()
	if err != nil {
		return nil, err
	}
	if _, err = translate.ParseLanguage(p.TargetLanguage); err != nil {
		return nil, invalid(err)
	}
	if p.Text == "" {
		return nil, invalid(errors.New(i18n.T("translate_error_empty_text")))
	}
	return t.Translate(c.Request.Context(), p.Text, p.TargetLanguage, p.SourceLanguage)
}

func (h *FunctionsHandler) translateBatch(c *gin.Context, raw []byte) (any, error) {
	var p translateParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	t, err := h.translator()
	if err != nil {
		return nil, err
	}
	if _, err = translate.ParseLanguage(p.TargetLanguage); err != nil {
		return nil, invalid(err)
	}
	if len(p.Texts) == 0 {
		return nil, invalid(errors.New(i18n.T("translate_error_empty_text")))
	}

	translations, err := t.TranslateBatch(c.Request.Context(), p.Texts, p.TargetLanguage, p.SourceLanguage)
	out := gin.H{"translations": translations}
	if err != nil {
		out["error"] = err.Error()
	}
	return out, nil
}

func (h *FunctionsHandler) listLanguages(_ *gin.Context, raw []byte) (any, error) {
	var p struct {
		DisplayLanguage string `json:"display_language"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return gin.H{"languages": translate.Languages(p.DisplayLanguage)}, nil
}

// user-preferences

func (h *FunctionsHandler) loadPreferences(c *gin.Context) (*domain.UserPreferences, error) {
	prefs, err := h.svc.Store.Preferences().Get(c.Request.Context(), userID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.UserPreferences{UserID: userID(c), Values: map[string]any{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if prefs.Values == nil {
		prefs.Values = map[string]any{}
	}
	return prefs, nil
}

func (h *FunctionsHandler) getPreferences(c *gin.Context, _ []byte) (any, error) {
	prefs, err := h.loadPreferences(c)
	if err != nil {
		return nil, err
	}
	return gin.H{"preferences": prefs.Values}, nil
}

// updatePreferences merges the given keys over the stored ones. Concurrent
// updates are last-writer-wins.
func (h *FunctionsHandler) updatePreferences(c *gin.Context, raw []byte) (any, error) {
	var p struct {
		Preferences map[string]any `json:"preferences"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Preferences == nil {
		return nil, invalid(errors.New("preferences are required"))
	}
	prefs, err := h.loadPreferences(c)
	if err != nil {
		return nil, err
	}
	prefs.Values = lo.Assign(prefs.Values, p.Preferences)
	prefs.UpdatedAt = h.now().UTC()
	if err = h.svc.Store.Preferences().Upsert(c.Request.Context(), prefs); err != nil {
		return nil, err
	}
	return gin.H{"preferences": prefs.Values, "updated_at": prefs.UpdatedAt}, nil
}

func (h *FunctionsHandler) resetPreferences(c *gin.Context, _ []byte) (any, error) {
	if err := h.svc.Store.Preferences().Delete(c.Request.Context(), userID(c)); err != nil {
		return nil, err
	}
	return gin.H{"preferences": map[string]any{}}, nil
}

// ai-therapy-chat

func (h *FunctionsHandler) startSession(c *gin.Context, raw []byte) (any, error) {
	var p struct {
		TherapistID string `json:"therapist_id"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.TherapistID == "" {
		return nil, invalid(errors.New(i18n.T("error_therapist_required")))
	}
	return h.svc.Chatter.StartSession(c.Request.Context(), userID(c), p.TherapistID)
}

func (h *FunctionsHandler) sendMessage(c *gin.Context, raw []byte) (any, error) {
	var req domain.ReplyRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if req.TherapistID == "" {
		return nil, invalid(errors.New(i18n.T("error_therapist_required")))
	}
	if req.Content == "" {
		return nil, invalid(errors.New(i18n.T("error_message_empty")))
	}
	req.UserID = userID(c)
	reply, err := h.svc.Chatter.GenerateReply(c.Request.Context(), &req)
	if err != nil {
		return nil, err
	}
	return gin.H{"message": reply}, nil
}

func (h *FunctionsHandler) endSession(c *gin.Context, raw []byte) (any, error) {
	var p struct {
		Record *domain.SessionRecord `json:"record"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Record == nil || p.Record.State.SessionID == "" {
		return nil, invalid(errors.New("session record is required"))
	}
	p.Record.State.UserID = userID(c)
	if err := h.svc.Chatter.EndSession(c.Request.Context(), p.Record); err != nil {
		return nil, err
	}
	return gin.H{"success": true, "session_id": p.Record.State.SessionID}, nil
}
