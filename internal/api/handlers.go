package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"securitysystem/internal/alarm"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		CurrentMode: string(snap.CurrentMode),
		TargetMode:  string(snap.TargetMode),
		Tripped:     snap.Tripped,
		Arming:      snap.Arming,
		Paused:      snap.Paused,
		ArmingDelay: snap.ArmingDelay,
	})
}

// handleTrigger activates the trigger sensor. Without delay=true the alarm
// goes off at once.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	delay, ok := parseDelay(w, r)
	if !ok {
		return
	}
	s.execute(w, r, alarm.Command{
		Kind:   alarm.CommandTrigger,
		Origin: alarm.OriginRemote,
		Delay:  &delay,
		Value:  true,
	})
}

func (s *Server) handleMode(kind alarm.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		delay, ok := parseDelay(w, r)
		if !ok {
			return
		}
		s.execute(w, r, alarm.Command{
			Kind:   kind,
			Origin: alarm.OriginRemote,
			Delay:  &delay,
		})
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")
	enable, ok := parseSwitch(value)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid value: "+value)
		return
	}
	s.execute(w, r, alarm.Command{
		Kind:   alarm.CommandSetPause,
		Origin: alarm.OriginRemote,
		Value:  enable,
	})
}

func (s *Server) handleArmingLock(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")
	locked, ok := parseSwitch(value)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid value: "+value)
		return
	}

	scope := chi.URLParam(r, "mode")
	if err := s.ctrl.SetArmingLock(scope, locked); err != nil {
		if errors.Is(err, alarm.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "Controller stopped")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid mode: "+scope)
		return
	}
	writeOK(w)
}

// execute runs cmd and reports the outcome. AlreadySet and AlreadyArming
// count as success.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, cmd alarm.Command) {
	res, err := s.ctrl.Execute(cmd)
	if res.Acknowledged() {
		writeOK(w)
		return
	}

	s.logger.Info("Command rejected",
		zap.String("command", string(cmd.Kind)),
		zap.String("result", string(res)),
		zap.String("request_id", requestID(r)))

	status := http.StatusBadRequest
	if res == alarm.ResultClosed {
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, errorMessage(res, err))
}

func errorMessage(res alarm.Result, err error) string {
	var se *alarm.StateError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err != nil {
		return err.Error()
	}
	return string(res)
}

// parseDelay reads the optional delay flag, which defaults to false
func parseDelay(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("delay")
	if raw == "" {
		return false, true
	}
	delay, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delay: "+raw)
		return false, false
	}
	return delay, true
}

func parseSwitch(value string) (on bool, ok bool) {
	switch strings.ToLower(value) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}
	return false, false
}
