package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/capture"
)

const capturesPath = "/captures"

type enableRequest struct {
	Path        string `json:"path"`
	MaxPackets  uint32 `json:"max_packets"`
	MaxFileSize uint64 `json:"max_file_size"`
	SnapLen     uint32 `json:"snap_len"`
	PacketType  string `json:"packet_type"`
	ThreadSafe  bool   `json:"thread_safe"`
	Manifest    bool   `json:"manifest"`
}

func (r *enableRequest) toConfig() (capture.Config, error) {
	cfg := capture.Config{
		Path:        r.Path,
		MaxPackets:  r.MaxPackets,
		MaxFileSize: r.MaxFileSize,
		SnapLen:     r.SnapLen,
		ThreadSafe:  r.ThreadSafe,
		Manifest:    r.Manifest,
	}
	if r.PacketType != "" {
		pt, err := mpcap.ParsePacketType(r.PacketType)
		if err != nil {
			return capture.Config{}, err
		}
		cfg.PacketType = pt
	}
	return cfg, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == capturesPath:
		if method == fasthttp.MethodGet {
			s.handleList(ctx)
			return
		}
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	case strings.HasPrefix(path, capturesPath+"/"):
		iface := strings.TrimPrefix(path, capturesPath+"/")
		if iface == "" || strings.Contains(iface, "/") {
			writeError(ctx, fasthttp.StatusNotFound, "not found")
			return
		}
		switch method {
		case fasthttp.MethodPut:
			s.handleEnable(ctx, iface)
		case fasthttp.MethodGet:
			s.handleStatus(ctx, iface)
		case fasthttp.MethodDelete:
			s.handleDisable(ctx, iface)
		default:
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (s *Server) handleList(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, s.mgr.List())
}

func (s *Server) handleEnable(ctx *fasthttp.RequestCtx, iface string) {
	var req enableRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "decode request: "+err.Error())
			return
		}
	}

	cfg, err := req.toConfig()
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.mgr.Enable(iface, cfg); err != nil {
		s.writeCaptureError(ctx, err)
		return
	}

	st, err := s.mgr.Status(iface)
	if err != nil {
		s.writeCaptureError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, st)
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx, iface string) {
	st, err := s.mgr.Status(iface)
	if err != nil {
		s.writeCaptureError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, st)
}

func (s *Server) handleDisable(ctx *fasthttp.RequestCtx, iface string) {
	if err := s.mgr.Disable(iface); err != nil {
		s.writeCaptureError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// writeCaptureError 把管理层错误映射成 HTTP 状态码。
func (s *Server) writeCaptureError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, capture.ErrAlreadyEnabled):
		writeError(ctx, fasthttp.StatusConflict, err.Error())
	case errors.Is(err, capture.ErrNotEnabled), errors.Is(err, capture.ErrInvalidInterface):
		writeError(ctx, fasthttp.StatusNotFound, err.Error())
	default:
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}
