// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// MaterialProcessingTask 通知消费者对一份刚上传的学习资料做文本提取和切块。
type MaterialProcessingTask struct {
	MaterialID  string `json:"material_id"`
	UserID      string `json:"user_id"`
	StoragePath string `json:"storage_path"`
	FileName    string `json:"file_name"`
}
