package httpapi

import (
	"net/http"

	"validata-backend/pkg/health"
	"validata-backend/pkg/middleware"
	"validata-backend/services/framework"
	"validata-backend/services/research"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideEngine),
)

type Handler struct {
	frameworks *framework.Service
	research   *research.Service
	health     health.HealthService
}

type HandlerParams struct {
	fx.In
	Frameworks *framework.Service
	Research   *research.Service
	Health     health.HealthService
}

// ProvideEngine builds the gin engine with all routes registered.
func ProvideEngine(p HandlerParams) *gin.Engine {
	h := &Handler{
		frameworks: p.Frameworks,
		research:   p.Research,
		health:     p.Health,
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", h.health.Liveness)
	r.GET("/readyz", h.health.Readiness)

	v1 := r.Group("/v1")
	{
		v1.POST("/frameworks", h.CreateFramework)
		v1.GET("/frameworks/:id", h.GetFramework)
		v1.GET("/frameworks/:id/tasks", h.ListTasks)
		v1.GET("/frameworks/:id/readiness", h.CheckReadiness)
		v1.POST("/frameworks/:id/tasks/:taskId/complete", h.CompleteTask)
		v1.POST("/frameworks/:id/research", h.StartResearch)
		v1.GET("/frameworks/:id/research", h.GetJob)
		v1.GET("/frameworks/:id/report", h.GetReport)
	}

	return r
}

type createFrameworkRequest struct {
	ProjectID          string               `json:"project_id"`
	ProjectDescription string               `json:"project_description"`
	TemplateID         string               `json:"template_id"`
	Tasks              []framework.TaskSeed `json:"tasks"`
}

func (h *Handler) CreateFramework(c *gin.Context) {
	var req createFrameworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	fw, err := h.frameworks.CreateFramework(c.Request.Context(), req.ProjectID, req.ProjectDescription, req.TemplateID, req.Tasks)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, fw)
}

func (h *Handler) GetFramework(c *gin.Context) {
	fw, err := h.frameworks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, fw)
}

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.frameworks.ListTasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) CheckReadiness(c *gin.Context) {
	readiness, err := h.frameworks.CheckReadiness(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, readiness)
}

type completeTaskRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) CompleteTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	task, err := h.frameworks.CompleteTask(c.Request.Context(), c.Param("id"), c.Param("taskId"), req.Answer)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *Handler) StartResearch(c *gin.Context) {
	job, err := h.research.StartResearch(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.research.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.research.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}
