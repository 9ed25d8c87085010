package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextpie/sessiond/internal/domain"
)

type handlers struct {
	deps Deps
}

// requireSynced rejects commands until the first cache refresh completes;
// admission decisions on an empty snapshot would misfire.
func (h *handlers) requireSynced(c *gin.Context) {
	if !h.deps.Cache.Synced() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "panel cache is still syncing, try again shortly"})
		c.Abort()
		return
	}
	c.Next()
}

func (h *handlers) start(c *gin.Context) {
	id := domain.AccountID(c.Param("id"))

	server, err := h.deps.Admission.Start(c.Request.Context(), id)
	if err != nil {
		if rejection, ok := domain.AsRejection(err); ok {
			c.JSON(http.StatusConflict, gin.H{
				"error":  rejectMessage(rejection.Reason),
				"reason": string(rejection.Reason),
			})
			return
		}
		log.Printf("[ERROR] start for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"server": gin.H{
		"id":        server.ID,
		"name":      server.Name,
		"suspended": server.Suspended,
	}})
}

func (h *handlers) stop(c *gin.Context) {
	id := domain.AccountID(c.Param("id"))

	if err := h.deps.Admission.Stop(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "you do not have a server running"})
			return
		}
		log.Printf("[ERROR] stop for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stopping": true})
}

func (h *handlers) credits(c *gin.Context) {
	id := domain.AccountID(c.Param("id"))

	credits, err := h.deps.Accounts.Credits(c.Request.Context(), id)
	if err != nil {
		log.Printf("[ERROR] credits for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": credits})
}

func (h *handlers) daily(c *gin.Context) {
	id := domain.AccountID(c.Param("id"))

	granted, err := h.deps.Accounts.GrantDaily(c.Request.Context(), id)
	if err != nil {
		log.Printf("[ERROR] daily grant for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"granted": granted})
}

func (h *handlers) remaining(c *gin.Context) {
	id := domain.AccountID(c.Param("id"))

	minutes, err := h.deps.Queue.RemainingMinutes(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "you do not have a server running"})
			return
		}
		log.Printf("[ERROR] remaining for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"minutes": minutes})
}

func (h *handlers) withdraw(c *gin.Context) {
	id := domain.AccountID(c.Param("id"))

	if err := h.deps.Accounts.Withdraw(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cannot find any data connected to this account"})
			return
		}
		log.Printf("[ERROR] withdraw for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (h *handlers) queue(c *gin.Context) {
	minutes, err := h.deps.Queue.EstimateWaitMinutes(c.Request.Context())
	if err != nil {
		log.Printf("[ERROR] queue estimate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wait_minutes": minutes, "queued": minutes > 0})
}

func rejectMessage(reason domain.RejectReason) string {
	switch reason {
	case domain.RejectInsufficientCredits:
		return "you don't have enough credits"
	case domain.RejectCapacityReached:
		return "the maximum active servers have been reached, check the queue time"
	case domain.RejectAccountNotSynced:
		return "cannot find your account, if you just registered it can take a few minutes to sync"
	case domain.RejectAlreadyRunning:
		return "server already active, you may need to manually start it on the panel"
	case domain.RejectNoFreeAllocation:
		return "no server capacity left, contact support"
	case domain.RejectProvisioningError:
		return "something went wrong starting your server, please try again"
	default:
		return "session rejected"
	}
}
