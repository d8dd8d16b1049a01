// Package httpapi exposes the engagement lifecycle over HTTP using echo.
//
// Every domain (internships, mentorships) gets the same route set under its
// plural prefix. All routes except /health and /metrics require a bearer
// token issued by auth.Issuer.
//
// Routes, per prefix:
//
//	GET    /                              → list listings
//	POST   /                              → create listing (alumnus)
//	GET    /:id                           → get listing
//	PATCH  /:id                           → update listing (owner)
//	DELETE /:id                           → soft-delete listing (owner)
//	PATCH  /:id/toggle-active             → flip is_active (owner)
//	POST   /offer                         → create offer (alumnus)
//	GET    /offers, /offers/:id           → read offers
//	POST   /offers/:id/accept|reject|withdraw
//	POST   /application                   → create application (student)
//	GET    /applications, /applications/:id
//	POST   /applications/:id/accept|reject|withdraw
//	GET    /engagements, /engagements/:id → read engagements
//	POST   /upload-resume                 → register a resume (internships)
package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"alumnet/engagement-service/internal/lifecycle"
	"alumnet/engagement-service/internal/ratelimit"
)

// Handler holds shared dependencies.
type Handler struct {
	svc     *lifecycle.Service
	limiter *ratelimit.Limiter
}

// NewHandler returns a configured Handler. limiter may be nil.
func NewHandler(svc *lifecycle.Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

// RegisterRoutes mounts the routes of every domain on e, each group wrapped
// in mw.
func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	for _, d := range lifecycle.Domains {
		r := domainRoutes{h: h, d: d}
		dg := e.Group("/"+d.Plural(), mw...)

		dg.GET("", r.listListings)
		dg.POST("", r.createListing)

		dg.POST("/offer", r.createOffer, h.throttle("offer"))
		dg.GET("/offers", r.listProposals(lifecycle.KindOffer))
		dg.GET("/offers/:id", r.getProposal(lifecycle.KindOffer))
		dg.POST("/offers/:id/:action", r.transition(lifecycle.KindOffer))

		dg.POST("/application", r.createApplication, h.throttle("application"))
		dg.GET("/applications", r.listProposals(lifecycle.KindApplication))
		dg.GET("/applications/:id", r.getProposal(lifecycle.KindApplication))
		dg.POST("/applications/:id/:action", r.transition(lifecycle.KindApplication))

		dg.GET("/engagements", r.listEngagements)
		dg.GET("/engagements/:id", r.getEngagement)

		if d == lifecycle.DomainInternship {
			dg.POST("/upload-resume", r.uploadResume)
		}

		dg.GET("/:id", r.getListing)
		dg.PATCH("/:id", r.updateListing)
		dg.DELETE("/:id", r.deleteListing)
		dg.PATCH("/:id/toggle-active", r.toggleActive)
	}
}

func (h *Handler) throttle(name string) echo.MiddlewareFunc {
	if h.limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return rateLimited(h.limiter, name)
}

// domainRoutes binds handlers to one domain.
type domainRoutes struct {
	h *Handler
	d lifecycle.Domain
}

// ─── Listings ────────────────────────────────────────────────────────────────

func (r domainRoutes) listListings(c echo.Context) error {
	items, err := r.h.svc.ListListings(c.Request().Context(), callerFrom(c), r.d)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, mapSlice(items, toListing))
}

func (r domainRoutes) createListing(c echo.Context) error {
	var req createListingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := req.listing()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid date")
	}
	l, err := r.h.svc.CreateListing(c.Request().Context(), callerFrom(c), r.d, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toListing(l))
}

func (r domainRoutes) getListing(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid id")
	}
	l, err := r.h.svc.GetListing(c.Request().Context(), r.d, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toListing(l))
}

func (r domainRoutes) updateListing(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid id")
	}
	var req updateListingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	patch, err := req.patch()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid date")
	}
	l, err := r.h.svc.UpdateListing(c.Request().Context(), callerFrom(c), r.d, id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toListing(l))
}

func (r domainRoutes) deleteListing(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid id")
	}
	if err := r.h.svc.DeleteListing(c.Request().Context(), callerFrom(c), r.d, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r domainRoutes) toggleActive(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid id")
	}
	active, err := r.h.svc.ToggleActive(c.Request().Context(), callerFrom(c), r.d, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"is_active": active})
}

// ─── Proposals ───────────────────────────────────────────────────────────────

func (r domainRoutes) createOffer(c echo.Context) error {
	var req createOfferRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := r.h.svc.CreateOffer(c.Request().Context(), callerFrom(c), r.d, req.ListingID, req.StudentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toProposal(p))
}

func (r domainRoutes) createApplication(c echo.Context) error {
	var req createApplicationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := r.h.svc.CreateApplication(c.Request().Context(), callerFrom(c), r.d, lifecycle.NewApplication{
		ListingID:   req.ListingID,
		CoverLetter: req.CoverLetter,
		ResumeID:    req.ResumeID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toProposal(p))
}

func (r domainRoutes) listProposals(k lifecycle.ProposalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := r.h.svc.ListProposals(c.Request().Context(), callerFrom(c), r.d, k)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, mapSlice(items, toProposal))
	}
}

func (r domainRoutes) getProposal(k lifecycle.ProposalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return jsonError(c, http.StatusBadRequest, "invalid id")
		}
		p, err := r.h.svc.GetProposal(c.Request().Context(), callerFrom(c), r.d, k, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, toProposal(p))
	}
}

var kindTitle = map[lifecycle.ProposalKind]string{
	lifecycle.KindOffer:       "Offer",
	lifecycle.KindApplication: "Application",
}

// transition handles POST /{offers|applications}/:id/{accept|reject|withdraw}.
func (r domainRoutes) transition(k lifecycle.ProposalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return jsonError(c, http.StatusBadRequest, "invalid id")
		}
		ctx, caller := c.Request().Context(), callerFrom(c)

		switch lifecycle.Action(c.Param("action")) {
		case lifecycle.ActionAccept:
			res, err := r.h.svc.Accept(ctx, caller, r.d, k, id)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(http.StatusCreated, acceptResponse{
				Detail:         kindTitle[k] + " accepted. Engagement created.",
				EngagementID:   res.Engagement.ID,
				RemainingSlots: res.RemainingSlots,
			})
		case lifecycle.ActionReject:
			if _, err := r.h.svc.Reject(ctx, caller, r.d, k, id); err != nil {
				return writeError(c, err)
			}
			return c.JSON(http.StatusOK, map[string]string{"detail": kindTitle[k] + " rejected."})
		case lifecycle.ActionWithdraw:
			if _, err := r.h.svc.Withdraw(ctx, caller, r.d, k, id); err != nil {
				return writeError(c, err)
			}
			return c.JSON(http.StatusOK, map[string]string{"detail": kindTitle[k] + " withdrawn."})
		default:
			return jsonError(c, http.StatusNotFound, "unknown action")
		}
	}
}

// ─── Engagements ─────────────────────────────────────────────────────────────

func (r domainRoutes) listEngagements(c echo.Context) error {
	items, err := r.h.svc.ListEngagements(c.Request().Context(), callerFrom(c), r.d)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, mapSlice(items, toEngagement))
}

func (r domainRoutes) getEngagement(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid id")
	}
	e, err := r.h.svc.GetEngagement(c.Request().Context(), callerFrom(c), r.d, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toEngagement(e))
}

// ─── Resumes ─────────────────────────────────────────────────────────────────

func (r domainRoutes) uploadResume(c echo.Context) error {
	var req uploadResumeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := r.h.svc.RegisterResume(c.Request().Context(), callerFrom(c), req.URL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, resumeResponse{
		ResumeID:   res.ID,
		URL:        res.URL,
		UploadedAt: res.UploadedAt,
	})
}
