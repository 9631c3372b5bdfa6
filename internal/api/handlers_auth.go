package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskbuddy/internal/model"
)

// signInRequest carries the identity verified by the external provider.
type signInRequest struct {
	UID         string `json:"uid" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url"`
}

type signInResponse struct {
	Token   string            `json:"token"`
	Profile model.UserProfile `json:"profile"`
}

// handleSignIn trusts the identity in the body as already verified, so
// it must only be reachable through an identity-verifying proxy, or with
// a sign-in secret configured that only such a proxy holds.
func (s *Server) handleSignIn(c *gin.Context) {
	if s.signInSecret != "" {
		got := c.GetHeader("X-Sign-In-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.signInSecret)) != 1 {
			writeError(c, http.StatusUnauthorized, "unauthorized", "sign-in secret required")
			return
		}
	}
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "uid is required")
		return
	}
	ctx := c.Request.Context()

	profile, err := s.auth.UpsertProfile(ctx, model.UserProfile{
		UID:         req.UID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeStoreError(c, err)
		return
	}
	sess, err := s.auth.CreateSession(ctx, profile.UID)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	logFor(ctx).Info("signed in", "uid", profile.UID)
	c.JSON(http.StatusCreated, signInResponse{Token: sess.Token, Profile: profile})
}

func (s *Server) handleSignOut(c *gin.Context) {
	if err := s.auth.DeleteSession(c.Request.Context(), c.GetString("token")); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	p, err := s.auth.GetProfile(c.Request.Context(), userIDFrom(c.Request.Context()))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type preferencesPatch struct {
	Theme              *string `json:"theme"`
	DefaultView        *string `json:"default_view"`
	EmailNotifications *bool   `json:"email_notifications"`
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var patch preferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	ctx := c.Request.Context()
	uid := userIDFrom(ctx)

	p, err := s.auth.GetProfile(ctx, uid)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	prefs := p.Preferences
	if patch.Theme != nil {
		prefs.Theme = *patch.Theme
	}
	if patch.DefaultView != nil {
		prefs.DefaultView = *patch.DefaultView
	}
	if patch.EmailNotifications != nil {
		prefs.EmailNotifications = *patch.EmailNotifications
	}

	if err := s.auth.UpdatePreferences(ctx, uid, prefs); err != nil {
		writeStoreError(c, err)
		return
	}
	p.Preferences = prefs
	c.JSON(http.StatusOK, p)
}
