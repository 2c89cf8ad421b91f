package models

// Hyperparameters holds the fine-tuning knobs a user can set per request.
type Hyperparameters struct {
	LearningRate      float64 `json:"learning_rate" binding:"required,gt=0"`
	BatchSize         int     `json:"batch_size" binding:"required,gt=0"`
	Epochs            int     `json:"epochs" binding:"required,gt=0"`
	MaxSequenceLength int     `json:"max_sequence_length" binding:"required,gt=0"`
	WeightDecay       float64 `json:"weight_decay" binding:"gte=0"`
	Optimizer         string  `json:"optimizer" binding:"required"`
}

// TrainingRequest is the request payload from the frontend to start a
// fine-tuning run. Files are object-store keys produced by the upload
// endpoint. ResourceHint is optional and selects which fallback chain is
// tried first.
type TrainingRequest struct {
	UserID          string          `json:"userId"`
	ModelID         string          `json:"modelId" binding:"required"`
	Hyperparameters Hyperparameters `json:"hyperparameters" binding:"required"`
	Files           []string        `json:"files" binding:"required,min=1"`
	ResourceHint    string          `json:"resourceHint" binding:"omitempty,oneof=cpu gpu"`
	EstimatedHours  float64         `json:"estimatedHours" binding:"omitempty,gt=0"`
}

// TrainingRecord is one instruction-tuning sample in the prepared dataset.
type TrainingRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// BaseModel describes a fine-tunable base model exposed by GET /models.
type BaseModel struct {
	ModelID       string   `json:"modelId"`
	ModelName     string   `json:"modelName"`
	Description   string   `json:"description"`
	Task          string   `json:"task"`
	InstanceTypes []string `json:"instanceTypes"`
	MinInstance   string   `json:"minInstance"`
}

// BaseModels lists the models available for fine-tuning.
func BaseModels() []BaseModel {
	return []BaseModel{
		{
			ModelID:       "llama-2-7b",
			ModelName:     "Llama 2 7B",
			Description:   "Meta Llama 2 7B - Fine-tuning ready",
			Task:          "text-generation",
			InstanceTypes: []string{"ml.g5.2xlarge", "ml.g5.4xlarge", "ml.p3.2xlarge"},
			MinInstance:   "ml.g5.2xlarge",
		},
		{
			ModelID:       "llama-2-13b",
			ModelName:     "Llama 2 13B",
			Description:   "Meta Llama 2 13B - Fine-tuning ready",
			Task:          "text-generation",
			InstanceTypes: []string{"ml.g5.4xlarge", "ml.g5.8xlarge", "ml.p3.2xlarge"},
			MinInstance:   "ml.g5.4xlarge",
		},
		{
			ModelID:       "flan-t5-xl",
			ModelName:     "FLAN-T5 XL",
			Description:   "Google FLAN-T5 XL - Instruction-tuned",
			Task:          "text2text-generation",
			InstanceTypes: []string{"ml.g5.2xlarge", "ml.g5.4xlarge", "ml.p3.2xlarge"},
			MinInstance:   "ml.g5.2xlarge",
		},
	}
}
