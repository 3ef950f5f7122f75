package middleware

import (
	"fmt"

	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/gin-gonic/gin"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
)

// InitFlowControl initializes sentinel and loads a reject-on-excess QPS rule per resource.
// Resources with a non-positive threshold are left unguarded.
func InitFlowControl(thresholds map[string]float64) error {
	if err := sentinel.InitDefault(); err != nil {
		return fmt.Errorf("init sentinel: %w", err)
	}

	rules := make([]*flow.Rule, 0, len(thresholds))
	for resource, qps := range thresholds {
		if qps <= 0 {
			continue
		}
		rules = append(rules, &flow.Rule{
			Resource:               resource,
			TokenCalculateStrategy: flow.Direct,
			ControlBehavior:        flow.Reject,
			Threshold:              qps,
			StatIntervalInMs:       1000,
		})
	}
	if _, err := flow.LoadRules(rules); err != nil {
		return fmt.Errorf("load sentinel flow rules: %w", err)
	}
	return nil
}

// FlowControl guards a route with the sentinel resource. Blocked requests get 429 RATE_LIMITED.
func FlowControl(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, b := sentinel.Entry(resource, sentinel.WithTrafficType(base.Inbound))
		if b != nil {
			apperrors.Respond(c, apperrors.ErrRateLimited)
			return
		}
		defer e.Exit()

		c.Next()
	}
}
