package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainartifact "github.com/alanyang/annotation-desk/internal/domain/artifact"
	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	assignmentsvc "github.com/alanyang/annotation-desk/internal/service/assignment"
	"github.com/alanyang/annotation-desk/internal/transport/httperr"
)

func Register(rg *gin.RouterGroup, assignments *assignmentsvc.Service, artifacts *artifactsvc.Service) {
	rg.GET("", listWorkers(assignments, artifacts))
	rg.GET("/:worker", getWorker(assignments, artifacts))
}

type workerSummary struct {
	Name    string                 `json:"name"`
	Quota   int                    `json:"quota"`
	Summary domainartifact.Summary `json:"summary"`
}

type workerDetail struct {
	workerSummary
	Images []domainartifact.Status `json:"images"`
}

func listWorkers(assignments *assignmentsvc.Service, artifacts *artifactsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		workers := assignments.Workers()
		out := make([]workerSummary, 0, len(workers))
		for _, w := range workers {
			sum, err := artifacts.Aggregate(c.Request.Context(), w.Name)
			if err != nil {
				httperr.Abort(c, err)
				return
			}
			out = append(out, workerSummary{Name: w.Name, Quota: w.Quota, Summary: sum})
		}
		c.JSON(http.StatusOK, out)
	}
}

func getWorker(assignments *assignmentsvc.Service, artifacts *artifactsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("worker")

		statuses, err := artifacts.Statuses(c.Request.Context(), name)
		if err != nil {
			httperr.Abort(c, err)
			return
		}

		detail := workerDetail{
			workerSummary: workerSummary{Name: name, Summary: domainartifact.Summarize(statuses)},
			Images:        statuses,
		}
		for _, w := range assignments.Workers() {
			if w.Name == name {
				detail.Quota = w.Quota
				break
			}
		}
		c.JSON(http.StatusOK, detail)
	}
}
