package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/protean-labs/protean/internal/registry"
)

// RecordHandler serves the generated CRUD surface of a materialized entity.
// It is invoked by the dispatcher with the resolved handle; it has no routes
// of its own.
type RecordHandler struct{}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler() *RecordHandler {
	return &RecordHandler{}
}

// Index lists the entity's records with pagination.
func (h *RecordHandler) Index(c *gin.Context, handle *registry.Handle) {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 25)

	records, total, err := handle.List(c.Request.Context(), page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data := make([]gin.H, 0, len(records))
	for _, record := range records {
		data = append(data, serializeRecord(handle, record))
	}
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": gin.H{
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	})
}

// Create validates the submitted attributes against the compiled rules and
// inserts the record.
func (h *RecordHandler) Create(c *gin.Context, handle *registry.Handle) {
	attrs, ok := bindAttributes(c)
	if !ok {
		return
	}

	if errs := handle.Validate(attrs); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return
	}

	record, err := handle.Insert(c.Request.Context(), attrs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": serializeRecord(handle, record)})
}

// Show returns one record.
func (h *RecordHandler) Show(c *gin.Context, handle *registry.Handle, rawID string) {
	id, ok := recordID(c, rawID)
	if !ok {
		return
	}

	record, err := handle.Get(c.Request.Context(), id)
	if err != nil {
		respondRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": serializeRecord(handle, record)})
}

// Update validates the submitted attributes and applies them to the record.
func (h *RecordHandler) Update(c *gin.Context, handle *registry.Handle, rawID string) {
	id, ok := recordID(c, rawID)
	if !ok {
		return
	}
	attrs, ok := bindAttributes(c)
	if !ok {
		return
	}

	if errs := validatePartial(handle, attrs); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return
	}

	record, err := handle.Update(c.Request.Context(), id, attrs)
	if err != nil {
		respondRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": serializeRecord(handle, record)})
}

// Destroy deletes the record.
func (h *RecordHandler) Destroy(c *gin.Context, handle *registry.Handle, rawID string) {
	id, ok := recordID(c, rawID)
	if !ok {
		return
	}

	if err := handle.Delete(c.Request.Context(), id); err != nil {
		respondRecordError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// validatePartial runs rules only for the attributes present in the request,
// so an update that omits a required field does not fail on it.
func validatePartial(handle *registry.Handle, attrs map[string]interface{}) []string {
	var errs []string
	for _, field := range handle.Fields {
		value, present := attrs[field.Name]
		if !present {
			continue
		}
		for _, rule := range handle.Rules[field.Name] {
			if err := rule.Validate(value); err != nil {
				errs = append(errs, field.Name+" "+err.Error())
			}
		}
	}
	return errs
}

func bindAttributes(c *gin.Context) (map[string]interface{}, bool) {
	var attrs map[string]interface{}
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"invalid request body"}})
		return nil, false
	}
	return attrs, true
}

func recordID(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return 0, false
	}
	return id, true
}

func respondRecordError(c *gin.Context, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func serializeRecord(handle *registry.Handle, record map[string]interface{}) gin.H {
	attributes := make(gin.H, len(record))
	for key, value := range record {
		if key == "id" {
			continue
		}
		attributes[key] = value
	}
	return gin.H{
		"id":         record["id"],
		"type":       handle.Resource,
		"attributes": attributes,
	}
}
