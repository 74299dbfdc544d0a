// Package yarntest 提供测试用的 ResourceManager 和 tracking 服务
package yarntest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"yarnitor/internal/common"

	"github.com/gorilla/mux"
)

// SparkJob Spark REST API 中的 job
type SparkJob struct {
	JobID             int64  `json:"jobId"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	NumTasks          int64  `json:"numTasks"`
	NumActiveTasks    int64  `json:"numActiveTasks"`
	NumCompletedTasks int64  `json:"numCompletedTasks"`
	NumFailedTasks    int64  `json:"numFailedTasks"`
}

// MapReduceJob MapReduce AM REST API 中的 job
type MapReduceJob struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	State                string `json:"state"`
	MapsTotal            int64  `json:"mapsTotal"`
	MapsCompleted        int64  `json:"mapsCompleted"`
	MapsRunning          int64  `json:"mapsRunning"`
	FailedMapAttempts    int64  `json:"failedMapAttempts"`
	ReducesTotal         int64  `json:"reducesTotal"`
	ReducesCompleted     int64  `json:"reducesCompleted"`
	ReducesRunning       int64  `json:"reducesRunning"`
	FailedReduceAttempts int64  `json:"failedReduceAttempts"`
}

type tracking struct {
	status  int
	body    string
	delay   time.Duration
	spark   []SparkJob
	mr      []MapReduceJob
	cookies map[string]string
}

// Server 同时扮演 ResourceManager 与所有 tracking 服务
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	apps     []common.RawApplication
	nullApps bool
	metrics  map[string]interface{}
	rmStatus int
	tracking map[string]*tracking
}

// NewServer 启动测试服务
func NewServer() *Server {
	s := &Server{
		metrics: map[string]interface{}{
			"activeNodes":       float64(3),
			"totalMB":           float64(24576),
			"totalVirtualCores": float64(24),
		},
		tracking: make(map[string]*tracking),
	}

	router := mux.NewRouter()
	cluster := router.PathPrefix("/ws/v1/cluster").Subrouter()
	cluster.HandleFunc("/apps", s.handleApps).Methods("GET")
	cluster.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	proxy := router.PathPrefix("/proxy/{proxyId}").Subrouter()
	proxy.HandleFunc("/api/v1/applications/{appId}/jobs", s.handleSparkJobs).Methods("GET")
	proxy.HandleFunc("/ws/v1/mapreduce/jobs", s.handleMapReduceJobs).Methods("GET")

	s.Server = httptest.NewServer(router)
	return s
}

// TrackingURL 返回应用的 tracking url
func (s *Server) TrackingURL(id string) string {
	return s.URL + "/proxy/" + id + "/"
}

// AddApp 添加一个 RUNNING 应用，trackingUrl 为空时自动填充
func (s *Server) AddApp(app common.RawApplication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.TrackingURL == "" {
		app.TrackingURL = s.TrackingURL(app.ID)
	}
	if app.State == "" {
		app.State = common.ApplicationStateRunning
	}
	s.apps = append(s.apps, app)
	s.trackingFor(app.ID)
}

// AddSparkApp 添加 Spark 应用及其 job
func (s *Server) AddSparkApp(id string, jobs ...SparkJob) {
	s.AddApp(common.RawApplication{ID: id, Name: "spark-" + id, User: "hadoop", Queue: "default", ApplicationType: common.ApplicationTypeSpark})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingFor(id).spark = jobs
}

// AddMapReduceApp 添加 MapReduce 应用及其 job
func (s *Server) AddMapReduceApp(id string, jobs ...MapReduceJob) {
	s.AddApp(common.RawApplication{ID: id, Name: "mr-" + id, User: "hadoop", Queue: "default", ApplicationType: common.ApplicationTypeMapReduce})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingFor(id).mr = jobs
}

// SetNullApps 让 /cluster/apps 返回 {"apps": null}
func (s *Server) SetNullApps(null bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nullApps = null
}

// SetResourceManagerStatus 让 ResourceManager 接口返回指定状态码，0 表示正常
func (s *Server) SetResourceManagerStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rmStatus = status
}

// SetClusterMetrics 设置集群指标
func (s *Server) SetClusterMetrics(metrics map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
}

// SetTrackingStatus 让某个应用的 tracking 服务返回指定状态码，0 表示正常
func (s *Server) SetTrackingStatus(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingFor(id).status = status
}

// SetTrackingBody 让某个应用的 tracking 服务返回固定内容
func (s *Server) SetTrackingBody(id, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingFor(id).body = body
}

// SetTrackingDelay 为某个应用的 tracking 服务增加延迟
func (s *Server) SetTrackingDelay(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingFor(id).delay = delay
}

// Cookie 返回某个应用 tracking 请求中最后一次携带的 cookie 值
func (s *Server) Cookie(id, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackingFor(id).cookies[name]
}

func (s *Server) trackingFor(id string) *tracking {
	t, ok := s.tracking[id]
	if !ok {
		t = &tracking{cookies: make(map[string]string)}
		s.tracking[id] = t
	}
	return t
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, null := s.rmStatus, s.nullApps
	apps := make([]common.RawApplication, 0, len(s.apps))
	state := r.URL.Query().Get("state")
	for _, app := range s.apps {
		if state == "" || strings.EqualFold(app.State, state) {
			apps = append(apps, app)
		}
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if null {
		writeJSON(w, map[string]interface{}{"apps": nil})
		return
	}
	writeJSON(w, map[string]interface{}{
		"apps": map[string]interface{}{
			"app": apps,
		},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, metrics := s.rmStatus, s.metrics
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, map[string]interface{}{"clusterMetrics": metrics})
}

// serveTracking 处理通用的故障注入，返回 false 表示已经写出响应
func (s *Server) serveTracking(w http.ResponseWriter, r *http.Request) (*tracking, bool) {
	id := mux.Vars(r)["proxyId"]

	s.mu.Lock()
	t := s.trackingFor(id)
	for _, c := range r.Cookies() {
		t.cookies[c.Name] = c.Value
	}
	status, body, delay := t.status, t.body, t.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return nil, false
		}
	}
	if status != 0 {
		w.WriteHeader(status)
		return nil, false
	}
	if body != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
		return nil, false
	}
	return t, true
}

func (s *Server) handleSparkJobs(w http.ResponseWriter, r *http.Request) {
	t, ok := s.serveTracking(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	s.mu.Lock()
	jobs := make([]SparkJob, 0, len(t.spark))
	for _, job := range t.spark {
		if status == "" || strings.EqualFold(job.Status, status) {
			jobs = append(jobs, job)
		}
	}
	s.mu.Unlock()

	writeJSON(w, jobs)
}

func (s *Server) handleMapReduceJobs(w http.ResponseWriter, r *http.Request) {
	t, ok := s.serveTracking(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	jobs := append([]MapReduceJob(nil), t.mr...)
	s.mu.Unlock()

	writeJSON(w, map[string]interface{}{
		"jobs": map[string]interface{}{
			"job": jobs,
		},
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
