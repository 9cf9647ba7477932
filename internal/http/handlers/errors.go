package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/internal/http/response"
	"github.com/paulexconde/surveydesk/pkg/fault"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("jsonobject", isJSONObject)
		}
	})
}

// isJSONObject accepts opaque documents only when they are JSON objects.
func isJSONObject(fl validator.FieldLevel) bool {
	doc, ok := fl.Field().Interface().(datatypes.JSON)
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(doc)
	return len(trimmed) > 1 && trimmed[0] == '{'
}

// respondError maps service errors onto the API's status codes. Anything that
// is not a known fault becomes an opaque 500.
func respondError(c *gin.Context, err error) {
	switch code := fault.Code(err); code {
	case fault.CodeNotFound:
		response.RespondError(c, http.StatusNotFound, code, err)
	case fault.CodeConflict:
		response.RespondError(c, http.StatusConflict, code, err)
	case fault.CodeInvalidRequest:
		response.RespondError(c, http.StatusBadRequest, code, errors.New(fault.Message(err)))
	default:
		response.RespondServerError(c, err)
	}
}

func respondBindError(c *gin.Context, err error) {
	response.RespondError(c, http.StatusBadRequest, fault.CodeInvalidRequest, err)
}

func parseID(c *gin.Context, raw, name string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.RespondError(c, http.StatusBadRequest, fault.CodeInvalidRequest, errors.New(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}
