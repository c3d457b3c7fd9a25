package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cvo-platform/cvo-core/internal/assign"
	"github.com/cvo-platform/cvo-core/internal/audit"
	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/photos"
	"github.com/cvo-platform/cvo-core/internal/reconcile"
)

type handlers struct {
	runner    *reconcile.Runner
	balancer  *assign.Balancer
	cascade   *photos.Cascade
	auditor   *audit.Auditor
	corrector *audit.Corrector
	stats     *assign.StatsService
	log       logger.Logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// runReconcile 手动触发一次 对账→分配，和周期任务同一条代码路径。
func (h *handlers) runReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	summary, assignment, err := h.runner.RunOnce(r.Context())
	if err != nil {
		h.log.Errorf("manual reconcile failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":    summary,
		"assignment": assignment,
	})
}

// runAssignment 手动触发一次摄影师分配批次。
// 容量错误和重入都以 409 上报计数，不算服务器故障。
func (h *handlers) runAssignment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result, err := h.balancer.Run(r.Context())
	if err != nil {
		if errors.Is(err, assign.ErrNoActiveCapacity) || errors.Is(err, assign.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err)
			return
		}
		h.log.Errorf("manual assignment failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type completeRequest struct {
	LicensePlate string `json:"license_plate"`
}

// completePhotos 人工标记拍照完成，触发接收日期回填级联。
func (h *handlers) completePhotos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.cascade.CompletePhotos(r.Context(), req.LicensePlate, time.Now())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// auditReport 只读审计：返回当前全部一致性发现。
func (h *handlers) auditReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	findings, err := h.auditor.Report(r.Context())
	if err != nil {
		h.log.Errorf("audit report failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(findings),
		"findings": findings,
	})
}

// auditCorrect 跑一遍审计并对可安全修复的规则执行纠错批次。
func (h *handlers) auditCorrect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	findings, err := h.auditor.Report(r.Context())
	if err != nil {
		h.log.Errorf("audit report failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	result, err := h.corrector.Apply(r.Context(), findings)
	if err != nil {
		h.log.Errorf("audit correction failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"findings":   len(findings),
		"correction": result,
	})
}

// photographerStats 摄影师绩效只读聚合。
func (h *handlers) photographerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.stats.PerPhotographer(r.Context())
	if err != nil {
		h.log.Errorf("photographer stats failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
