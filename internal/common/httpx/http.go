package httpx

import (
	"context"
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

type Response struct {
	StatusCode  int
	Location    string //in case of http.StatusCreated
	Response    any
	ContentType string
}

type RequestHandler func(r *http.Request) (*Response, error)

type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler RequestHandler
}

func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		if rsp.ContentType == "application/json" {
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		} else {
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

// SendJsonRsp writes rsp as the JSON body. A nil rsp with a 204 status
// writes no body.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, rsp any, location ...string) {
	if len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	if statusCode == http.StatusNoContent || rsp == nil {
		w.WriteHeader(statusCode)
		return
	}
	body, err := json.Marshal(rsp)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to marshal response")
		ErrApplicationError().Send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

// SendError maps err to a JSON failure response. apperrors.Error values
// keep their status code and reason; anything else is a 500.
func SendError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if httperror, ok := err.(*Error); ok {
		httperror.Send(w)
		return
	}
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		statusCode := appErr.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		httperror := &Error{
			StatusCode:  statusCode,
			Reason:      appErr.Reason(),
			Description: appErr.ErrorAll(),
		}
		httperror.Send(w)
		return
	}
	ErrApplicationError(err.Error()).Send(w)
}
