package common

// 应用状态
const (
	ApplicationStateRunning       = "RUNNING"
	ApplicationStateIdle          = "IDLE"
	ApplicationStateNonResponsive = "NON_RESPONSIVE"
	ApplicationStateUnknown       = "UNKNOWN"
)

// 应用类型
const (
	ApplicationTypeSpark     = "SPARK"
	ApplicationTypeMapReduce = "MAPREDUCE"
	ApplicationTypeMapRed    = "MAPRED"
)

// RawApplication ResourceManager 返回的应用信息
type RawApplication struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	User            string  `json:"user"`
	ApplicationType string  `json:"applicationType"`
	Queue           string  `json:"queue"`
	StartedTime     int64   `json:"startedTime"`
	AllocatedMB     int64   `json:"allocatedMB"`
	AllocatedVCores int64   `json:"allocatedVCores"`
	TrackingURL     string  `json:"trackingUrl"`
	State           string  `json:"state"`
	FinalStatus     string  `json:"finalStatus,omitempty"`
	MemorySeconds   int64   `json:"memorySeconds"`
	VcoreSeconds    int64   `json:"vcoreSeconds"`
	Progress        float64 `json:"progress"`
}

// RawAppList /ws/v1/cluster/apps 响应，apps 可能为 null
type RawAppList struct {
	Apps *struct {
		App []RawApplication `json:"app"`
	} `json:"apps"`
}

// Applications 返回应用列表，apps 为 null 时返回 nil
func (l *RawAppList) Applications() []RawApplication {
	if l == nil || l.Apps == nil {
		return nil
	}
	return l.Apps.App
}

// Progress 标准化的进度记录
type Progress struct {
	Name      string `json:"name"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Running   int64  `json:"running"`
	Total     int64  `json:"total"`
}

// Application 标准化的应用记录，每个轮询周期整体替换
type Application struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	User            string     `json:"user"`
	ApplicationType string     `json:"applicationType"`
	Queue           string     `json:"queue"`
	StartedTime     int64      `json:"startedTime"`
	AllocatedMB     int64      `json:"allocatedMB"`
	AllocatedVCores int64      `json:"allocatedVCores"`
	TrackingURL     string     `json:"trackingUrl"`
	State           string     `json:"state"`
	MemorySeconds   int64      `json:"memorySeconds"`
	VcoreSeconds    int64      `json:"vcoreSeconds"`
	Job             string     `json:"job"`
	Progress        []Progress `json:"progress"`
}

// ClusterMetrics ResourceManager 集群指标，原样透传
type ClusterMetrics map[string]interface{}

// Snapshot 一个轮询周期发布的完整快照
type Snapshot struct {
	Current         map[string]*Application `json:"current"`
	ClusterMetrics  ClusterMetrics          `json:"cluster-metrics"`
	RefreshDatetime string                  `json:"refresh-datetime"`
}

// StateCounts 按状态统计应用数
func (s *Snapshot) StateCounts() map[string]int {
	counts := make(map[string]int)
	for _, app := range s.Current {
		counts[app.State]++
	}
	return counts
}
