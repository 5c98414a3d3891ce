package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/casafind/casafind/internal/account"
	"github.com/casafind/casafind/internal/listing"
	"github.com/casafind/casafind/pkg/membership"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const signatureHeader = "X-Payment-Signature"

func (handler *httpHandler) handleRegisterAgent(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	agent, err := handler.services.Accounts.RegisterAgent(ctx.Request.Context(), request.Email, request.Password, request.DisplayName)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithToken(ctx, agent.AgentID, agent.Email, agent.DisplayName, account.RoleAgent)
}

func (handler *httpHandler) handleLoginAgent(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	agent, err := handler.services.Accounts.LoginAgent(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithToken(ctx, agent.AgentID, agent.Email, agent.DisplayName, account.RoleAgent)
}

func (handler *httpHandler) handleRegisterUser(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	user, err := handler.services.Accounts.RegisterUser(ctx.Request.Context(), request.Email, request.Password, request.DisplayName)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithToken(ctx, user.UserID, user.Email, user.DisplayName, account.RoleUser)
}

func (handler *httpHandler) handleLoginUser(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	user, err := handler.services.Accounts.LoginUser(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithToken(ctx, user.UserID, user.Email, user.DisplayName, account.RoleUser)
}

func (handler *httpHandler) respondWithToken(ctx *gin.Context, accountID string, email string, displayName string, role account.Role) {
	token, err := issueToken(handler.cfg, accountID, role, time.Now().UTC())
	if err != nil {
		handler.logger.Error("token issue failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "token issue failed"))
		return
	}
	ctx.JSON(http.StatusOK, authPayload{
		Token:       token,
		AccountID:   accountID,
		Email:       email,
		DisplayName: displayName,
		Role:        string(role),
	})
}

// handleMembership reconciles and returns the caller's membership state, so
// reading the balance also applies any pending downgrade or refill.
func (handler *httpHandler) handleMembership(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	ensured, err := handler.services.Membership.Ensure(ctx.Request.Context(), claims.Subject)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"membership": membershipToPayload(ensured)})
}

func (handler *httpHandler) handleCreateProperty(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request propertyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := handler.services.Listings.CreateProperty(ctx.Request.Context(), claims.Subject, propertyFromRequest(request))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"property": propertyToPayload(created)})
}

func (handler *httpHandler) handleGetProperty(ctx *gin.Context) {
	property, err := handler.services.Listings.GetProperty(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"property": propertyToPayload(property)})
}

func (handler *httpHandler) handleListProperties(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	filter := listing.PropertyFilter{
		City:   ctx.Query("city"),
		Status: listing.PropertyStatus(ctx.Query("status")),
		Limit:  limit,
	}
	properties, err := handler.services.Listings.ListProperties(ctx.Request.Context(), filter)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"properties": propertiesToPayload(properties)})
}

func (handler *httpHandler) handleUpdateProperty(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request propertyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	update := propertyFromRequest(request)
	update.PropertyID = ctx.Param("id")
	updated, err := handler.services.Listings.UpdateProperty(ctx.Request.Context(), claims.Subject, update)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"property": propertyToPayload(updated)})
}

func (handler *httpHandler) handleDeleteProperty(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	if err := handler.services.Listings.DeleteProperty(ctx.Request.Context(), claims.Subject, ctx.Param("id")); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (handler *httpHandler) handleCreateProject(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request projectRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := handler.services.Listings.CreateProject(ctx.Request.Context(), claims.Subject, projectFromRequest(request))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"project": projectToPayload(created)})
}

func (handler *httpHandler) handleGetProject(ctx *gin.Context) {
	project, err := handler.services.Listings.GetProject(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"project": projectToPayload(project)})
}

func (handler *httpHandler) handleListProjects(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	projects, err := handler.services.Listings.ListProjects(ctx.Request.Context(), ctx.Query("agent_id"), limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"projects": projectsToPayload(projects)})
}

func (handler *httpHandler) handleUpdateProject(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request projectRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	update := projectFromRequest(request)
	update.ProjectID = ctx.Param("id")
	updated, err := handler.services.Listings.UpdateProject(ctx.Request.Context(), claims.Subject, update)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"project": projectToPayload(updated)})
}

func (handler *httpHandler) handleDeleteProject(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	if err := handler.services.Listings.DeleteProject(ctx.Request.Context(), claims.Subject, ctx.Param("id")); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (handler *httpHandler) handleSaveProperty(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	if err := handler.services.Listings.SaveProperty(ctx.Request.Context(), claims.Subject, ctx.Param("id")); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (handler *httpHandler) handleUnsaveProperty(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	if err := handler.services.Listings.UnsaveProperty(ctx.Request.Context(), claims.Subject, ctx.Param("id")); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (handler *httpHandler) handleListSavedProperties(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	properties, err := handler.services.Listings.ListSavedProperties(ctx.Request.Context(), claims.Subject)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"properties": propertiesToPayload(properties)})
}

// handlePaymentWebhook settles a provider payment event. The raw body is
// authenticated with an HMAC-SHA256 signature before it is parsed; a replayed
// payment reference settles to a success response without mutating anything.
func (handler *httpHandler) handlePaymentWebhook(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable body"))
		return
	}
	if !validSignature(handler.cfg.WebhookSecret, body, ctx.GetHeader(signatureHeader)) {
		ctx.JSON(http.StatusUnauthorized, errorResponse("invalid_signature", "signature mismatch"))
		return
	}
	var request paymentEventRequest
	if err := json.Unmarshal(body, &request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := handler.services.Membership.Settle(ctx.Request.Context(), request.toEvent()); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func validSignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, membership.ErrAccountNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("account_not_found", "account not found"))
	case errors.Is(err, listing.ErrPropertyNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("property_not_found", "property not found"))
	case errors.Is(err, listing.ErrProjectNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("project_not_found", "project not found"))
	case errors.Is(err, membership.ErrInsufficientCredits):
		ctx.JSON(http.StatusPaymentRequired, errorResponse("insufficient_credits", "no listing credits remaining"))
	case errors.Is(err, listing.ErrNotOwner):
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "not the owner"))
	case errors.Is(err, membership.ErrInvalidPayload), errors.Is(err, membership.ErrInvalidTier),
		errors.Is(err, listing.ErrInvalidProperty), errors.Is(err, listing.ErrInvalidProject),
		errors.Is(err, account.ErrInvalidRegistration):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", err.Error()))
	case errors.Is(err, account.ErrEmailTaken):
		ctx.JSON(http.StatusConflict, errorResponse("email_taken", "email already registered"))
	case errors.Is(err, account.ErrInvalidCredentials):
		ctx.JSON(http.StatusUnauthorized, errorResponse("invalid_credentials", "invalid credentials"))
	default:
		handler.logger.Error("request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "internal error"))
	}
}
