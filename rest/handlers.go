package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/authorization"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/metadata"
	"github.com/weiplanet/data-api-builder/reqcontext"
)

// Executor mirrors engine.Executor; declared here so the dispatcher depends
// only on the contract it consumes.
type Executor interface {
	FindByPK(ctx context.Context, entity *metadata.Entity, pk []KeyValue) (map[string]interface{}, error)
	FindMany(ctx context.Context, entity *metadata.Entity, limit int) ([]map[string]interface{}, error)
	Create(ctx context.Context, entity *metadata.Entity, item map[string]interface{}) (map[string]interface{}, error)
	Update(ctx context.Context, entity *metadata.Entity, pk []KeyValue, item map[string]interface{}) (map[string]interface{}, error)
	Delete(ctx context.Context, entity *metadata.Entity, pk []KeyValue) (bool, error)
	Execute(ctx context.Context, entity *metadata.Entity, parameters map[string]interface{}) ([]map[string]interface{}, error)
}

// Handler dispatches REST requests: resolve the route, map the verb to an
// operation, check the caller's effective role against the permission index,
// then hand off to the executor.
type Handler struct {
	prefix   string
	store    *metadata.Store
	resolver *authorization.Resolver
	executor Executor
}

// NewHandler builds the REST dispatcher for one configuration snapshot.
func NewHandler(prefix string, store *metadata.Store, resolver *authorization.Resolver, executor Executor) *Handler {
	return &Handler{prefix: prefix, store: store, resolver: resolver, executor: executor}
}

// Register mounts the dispatcher under the configured route prefix.
func (h *Handler) Register(router *gin.Engine) {
	group := router.Group(h.prefix)
	group.Any("/*route", h.dispatch)
}

func (h *Handler) dispatch(c *gin.Context) {
	// The transport strips the single leading separator; the resolver
	// matches the remainder against the normalized prefix.
	path := strings.TrimPrefix(c.Request.URL.Path, "/")

	route, err := ResolveRoute(path, h.prefix)
	if err != nil {
		writeError(c, err)
		return
	}

	entity, ok := h.store.Entity(route.Entity)
	if !ok {
		writeError(c, apierror.NewEntityNotFound(route.Entity))
		return
	}

	operation, ok := h.operationFor(c.Request.Method, entity)
	if !ok {
		writeError(c, apierror.NewBadRequest("unsupported HTTP method "+c.Request.Method))
		return
	}

	role := reqcontext.EffectiveRole(c.Request.Context())
	if !h.resolver.IsAuthorized(role, entity.Name, operation) {
		writeError(c, apierror.NewForbidden(role, entity.Name, string(operation)))
		return
	}

	switch operation {
	case authorization.OpRead:
		h.handleRead(c, entity, route)
	case authorization.OpCreate:
		h.handleCreate(c, entity)
	case authorization.OpUpdate:
		h.handleUpdate(c, entity, route)
	case authorization.OpDelete:
		h.handleDelete(c, entity, route)
	case authorization.OpExecute:
		h.handleExecute(c, entity)
	}
}

// operationFor derives the operation from the HTTP verb. Stored procedures
// only ever execute, and only via POST.
func (h *Handler) operationFor(method string, entity *metadata.Entity) (authorization.Operation, bool) {
	if entity.IsStoredProcedure() {
		if method == http.MethodPost {
			return authorization.OpExecute, true
		}
		return "", false
	}
	return authorization.OperationForVerb(method)
}

func (h *Handler) handleRead(c *gin.Context, entity *metadata.Entity, route Route) {
	if route.PrimaryKey == "" {
		limit := 0
		if v := c.Query("$first"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		rows, err := h.executor.FindMany(c.Request.Context(), entity, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"value": rows})
		return
	}

	pk, err := ParsePrimaryKey(route.PrimaryKey)
	if err != nil {
		writeError(c, err)
		return
	}
	row, err := h.executor.FindByPK(c.Request.Context(), entity, pk)
	if err != nil {
		writeError(c, err)
		return
	}
	if row == nil {
		writeError(c, apierror.New("not found", http.StatusNotFound, apierror.SubCodeEntityNotFound))
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": []interface{}{row}})
}

func (h *Handler) handleCreate(c *gin.Context, entity *metadata.Entity) {
	var item map[string]interface{}
	if err := c.ShouldBindJSON(&item); err != nil {
		writeError(c, apierror.NewBadRequest("request body is not valid JSON"))
		return
	}
	row, err := h.executor.Create(c.Request.Context(), entity, item)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"value": []interface{}{row}})
}

func (h *Handler) handleUpdate(c *gin.Context, entity *metadata.Entity, route Route) {
	pk, err := ParsePrimaryKey(route.PrimaryKey)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(pk) == 0 {
		writeError(c, apierror.NewBadRequest("update requires a primary key route"))
		return
	}
	var item map[string]interface{}
	if err := c.ShouldBindJSON(&item); err != nil {
		writeError(c, apierror.NewBadRequest("request body is not valid JSON"))
		return
	}
	row, err := h.executor.Update(c.Request.Context(), entity, pk, item)
	if err != nil {
		writeError(c, err)
		return
	}
	if row == nil {
		writeError(c, apierror.New("not found", http.StatusNotFound, apierror.SubCodeEntityNotFound))
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": []interface{}{row}})
}

func (h *Handler) handleDelete(c *gin.Context, entity *metadata.Entity, route Route) {
	pk, err := ParsePrimaryKey(route.PrimaryKey)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(pk) == 0 {
		writeError(c, apierror.NewBadRequest("delete requires a primary key route"))
		return
	}
	deleted, err := h.executor.Delete(c.Request.Context(), entity, pk)
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		writeError(c, apierror.New("not found", http.StatusNotFound, apierror.SubCodeEntityNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleExecute(c *gin.Context, entity *metadata.Entity) {
	parameters := map[string]interface{}{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&parameters); err != nil {
			writeError(c, apierror.NewBadRequest("request body is not valid JSON"))
			return
		}
	}
	rows, err := h.executor.Execute(c.Request.Context(), entity, parameters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": rows})
}

// writeError translates structured failures into the REST error envelope.
// Anything that is not an *apierror.Error is an unexpected internal fault.
func writeError(c *gin.Context, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{
			"error": gin.H{
				"message": apiErr.Message,
				"code":    string(apiErr.Sub),
			},
		})
		return
	}
	logger.WithError(err).Error("Unhandled error in REST dispatch")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"message": "internal server error",
			"code":    "InternalError",
		},
	})
}
