package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/services"
)

// DefinitionHandler serves the definition management surface: declaring,
// inspecting, amending and tearing down dynamic models within a tenant.
type DefinitionHandler struct {
	service services.EntityServiceInterface
}

// NewDefinitionHandler creates a new DefinitionHandler
func NewDefinitionHandler(service services.EntityServiceInterface) *DefinitionHandler {
	return &DefinitionHandler{service: service}
}

// Register mounts the definition routes under the tenant scope.
func (h *DefinitionHandler) Register(router gin.IRouter) {
	scope := router.Group("/api/v1/organizations/:organization_id/dynamic_models")
	scope.GET("", h.Index)
	scope.POST("", h.Create)
	scope.GET("/:id", h.Show)
	scope.PUT("/:id", h.Update)
	scope.PATCH("/:id", h.Update)
	scope.DELETE("/:id", h.Destroy)
}

type fieldPayload struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"field_type"`
	Options map[string]interface{} `json:"options"`
}

type relationshipPayload struct {
	Name        string                 `json:"name"`
	Kind        string                 `json:"relationship_type"`
	TargetModel string                 `json:"target_model"`
	Options     map[string]interface{} `json:"options"`
}

type definitionPayload struct {
	Name          *string                `json:"name"`
	Description   *string                `json:"description"`
	Metadata      map[string]interface{} `json:"metadata"`
	Fields        *[]fieldPayload        `json:"field_definitions_attributes"`
	Relationships *[]relationshipPayload `json:"relationship_definitions_attributes"`
}

type definitionRequest struct {
	DynamicModelDefinition definitionPayload `json:"dynamic_model_definition"`
}

// Index lists the tenant's declared models.
func (h *DefinitionHandler) Index(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	defs, err := h.service.ListDefinitions(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}

	serialized := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		serialized = append(serialized, serializeDefinition(def))
	}
	c.JSON(http.StatusOK, gin.H{"data": serialized})
}

// Create declares a model and runs the full generation pipeline.
func (h *DefinitionHandler) Create(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req definitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"invalid request body"}})
		return
	}

	payload := req.DynamicModelDefinition
	def := &entities.EntityDefinition{
		OrganizationID: orgID,
		Metadata:       payload.Metadata,
	}
	if payload.Name != nil {
		def.Name = *payload.Name
	}
	if payload.Description != nil {
		def.Description = *payload.Description
	}
	if payload.Fields != nil {
		def.Fields = toFieldDefinitions(*payload.Fields)
	}
	if payload.Relationships != nil {
		def.Relationships = toRelationshipDefinitions(*payload.Relationships)
	}

	created, err := h.service.Generate(c.Request.Context(), def)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": serializeDefinition(created)})
}

// Show returns one declared model.
func (h *DefinitionHandler) Show(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	def, err := h.service.GetDefinition(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": serializeDefinition(def)})
}

// Update applies a partial amendment to a declared model.
func (h *DefinitionHandler) Update(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req definitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"invalid request body"}})
		return
	}

	payload := req.DynamicModelDefinition
	changes := services.DefinitionChanges{
		Name:        payload.Name,
		Description: payload.Description,
		Metadata:    payload.Metadata,
	}
	if payload.Fields != nil {
		fields := toFieldDefinitions(*payload.Fields)
		changes.Fields = fields
	}
	if payload.Relationships != nil {
		rels := toRelationshipDefinitions(*payload.Relationships)
		changes.Relationships = rels
	}

	updated, err := h.service.UpdateDefinition(c.Request.Context(), orgID, id, changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": serializeDefinition(updated)})
}

// Destroy tears the model down: table, routes, catalog rows and handle.
func (h *DefinitionHandler) Destroy(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cleanup(c.Request.Context(), orgID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toFieldDefinitions(payloads []fieldPayload) []*entities.FieldDefinition {
	fields := make([]*entities.FieldDefinition, 0, len(payloads))
	for _, p := range payloads {
		fields = append(fields, &entities.FieldDefinition{
			Name:    p.Name,
			Type:    p.Type,
			Options: p.Options,
		})
	}
	return fields
}

func toRelationshipDefinitions(payloads []relationshipPayload) []*entities.RelationshipDefinition {
	rels := make([]*entities.RelationshipDefinition, 0, len(payloads))
	for _, p := range payloads {
		rels = append(rels, &entities.RelationshipDefinition{
			Name:        p.Name,
			Kind:        p.Kind,
			TargetModel: p.TargetModel,
			Options:     p.Options,
		})
	}
	return rels
}

func serializeDefinition(def *entities.EntityDefinition) gin.H {
	fields := make([]gin.H, 0, len(def.Fields))
	for _, f := range def.Fields {
		fields = append(fields, gin.H{
			"id":         f.ID,
			"name":       f.Name,
			"field_type": f.Type,
			"options":    f.Options,
		})
	}
	relationships := make([]gin.H, 0, len(def.Relationships))
	for _, r := range def.Relationships {
		relationships = append(relationships, gin.H{
			"id":                r.ID,
			"name":              r.Name,
			"relationship_type": r.Kind,
			"target_model":      r.TargetModel,
			"options":           r.Options,
		})
	}

	return gin.H{
		"id":   def.ID,
		"type": "dynamic_model_definition",
		"attributes": gin.H{
			"name":                     def.Name,
			"description":              def.Description,
			"metadata":                 def.Metadata,
			"organization_id":          def.OrganizationID,
			"table_name":               def.TableName(),
			"model_name":               def.TypeName(),
			"field_definitions":        fields,
			"relationship_definitions": relationships,
			"created_at":               def.CreatedAt,
			"updated_at":               def.UpdatedAt,
		},
	}
}
