package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

// TeacherPINHeader carries the PIN entered on the role selection screen.
const TeacherPINHeader = "X-Teacher-PIN"

type pinChecker interface {
	Allows(entered string) bool
}

// TeacherGate keeps teacher screens out of casual reach. It is a UX gate and
// not an access control: the PIN is one shared configuration value.
func TeacherGate(gate pinChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gate == nil || gate.Allows(c.GetHeader(TeacherPINHeader)) {
			c.Next()
			return
		}
		response.Error(c, appErrors.WithRemediation(appErrors.Clone(appErrors.ErrPINRejected, "teacher PIN required"),
			"Enter the teacher PIN on the role selection screen."))
		c.Abort()
	}
}
