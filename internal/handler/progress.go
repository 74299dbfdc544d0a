package handler

import (
	"fmt"

	"yarnitor/internal/common"
)

// Progress 记录名称
const (
	ProgressYarn         = "yarn-progress"
	ProgressRunningTasks = "Running Tasks"
	ProgressTotal        = "Total"
	ProgressMaps         = "Maps"
	ProgressReduces      = "Reduces"
)

// SparkJob Spark REST API /applications/{id}/jobs 返回的 job。
// 计数字段用指针以区分缺失和零值。
type SparkJob struct {
	JobID             *int64 `json:"jobId"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	NumTasks          *int64 `json:"numTasks"`
	NumActiveTasks    *int64 `json:"numActiveTasks"`
	NumCompletedTasks *int64 `json:"numCompletedTasks"`
	NumFailedTasks    *int64 `json:"numFailedTasks"`
}

// Validate 检查聚合所需字段
func (j *SparkJob) Validate() error {
	return requireFields(map[string]*int64{
		"jobId":             j.JobID,
		"numTasks":          j.NumTasks,
		"numActiveTasks":    j.NumActiveTasks,
		"numCompletedTasks": j.NumCompletedTasks,
		"numFailedTasks":    j.NumFailedTasks,
	})
}

// MapReduceJob MapReduce AM REST API /ws/v1/mapreduce/jobs 返回的 job
type MapReduceJob struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	State                string `json:"state"`
	MapsTotal            *int64 `json:"mapsTotal"`
	MapsCompleted        *int64 `json:"mapsCompleted"`
	MapsRunning          *int64 `json:"mapsRunning"`
	FailedMapAttempts    *int64 `json:"failedMapAttempts"`
	ReducesTotal         *int64 `json:"reducesTotal"`
	ReducesCompleted     *int64 `json:"reducesCompleted"`
	ReducesRunning       *int64 `json:"reducesRunning"`
	FailedReduceAttempts *int64 `json:"failedReduceAttempts"`
}

// Validate 检查聚合所需字段
func (j *MapReduceJob) Validate() error {
	return requireFields(map[string]*int64{
		"mapsTotal":            j.MapsTotal,
		"mapsCompleted":        j.MapsCompleted,
		"mapsRunning":          j.MapsRunning,
		"failedMapAttempts":    j.FailedMapAttempts,
		"reducesTotal":         j.ReducesTotal,
		"reducesCompleted":     j.ReducesCompleted,
		"reducesRunning":       j.ReducesRunning,
		"failedReduceAttempts": j.FailedReduceAttempts,
	})
}

// MapReduceJobs /ws/v1/mapreduce/jobs 响应
type MapReduceJobs struct {
	Jobs *struct {
		Job []MapReduceJob `json:"job"`
	} `json:"jobs"`
}

// List 返回 job 列表，jobs 为 null 时返回 nil
func (m *MapReduceJobs) List() []MapReduceJob {
	if m == nil || m.Jobs == nil {
		return nil
	}
	return m.Jobs.Job
}

// AggregateSparkTasks 汇总 Spark job 的任务计数
func AggregateSparkTasks(name string, jobs []SparkJob) common.Progress {
	p := common.Progress{Name: name}
	for _, job := range jobs {
		p.Completed += value(job.NumCompletedTasks)
		p.Failed += value(job.NumFailedTasks)
		p.Running += value(job.NumActiveTasks)
		p.Total += value(job.NumTasks)
	}
	return p
}

// AggregateMaps 汇总 MapReduce job 的 map 计数
func AggregateMaps(jobs []MapReduceJob) common.Progress {
	p := common.Progress{Name: ProgressMaps}
	for _, job := range jobs {
		p.Completed += value(job.MapsCompleted)
		p.Failed += value(job.FailedMapAttempts)
		p.Running += value(job.MapsRunning)
		p.Total += value(job.MapsTotal)
	}
	return p
}

// AggregateReduces 汇总 MapReduce job 的 reduce 计数
func AggregateReduces(jobs []MapReduceJob) common.Progress {
	p := common.Progress{Name: ProgressReduces}
	for _, job := range jobs {
		p.Completed += value(job.ReducesCompleted)
		p.Failed += value(job.FailedReduceAttempts)
		p.Running += value(job.ReducesRunning)
		p.Total += value(job.ReducesTotal)
	}
	return p
}

// YarnProgress 以 ResourceManager 的百分比作为进度
func YarnProgress(percent float64) common.Progress {
	completed := int64(percent)
	if completed < 0 {
		completed = 0
	}
	return common.Progress{Name: ProgressYarn, Completed: completed, Total: 100}
}

// maxJobID 返回最大的 jobId，没有 job 时返回 0
func maxJobID(jobs []SparkJob) int64 {
	var max int64
	for _, job := range jobs {
		if id := value(job.JobID); id > max {
			max = id
		}
	}
	return max
}

func value(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func requireFields(fields map[string]*int64) error {
	for name, v := range fields {
		if v == nil {
			return fmt.Errorf("missing field %q", name)
		}
		if *v < 0 {
			return fmt.Errorf("negative value for field %q: %d", name, *v)
		}
	}
	return nil
}
