package trainer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Error code SageMaker returns when the account has no quota for the
// requested instance type.
const errCodeResourceLimitExceeded = "ResourceLimitExceeded"

const trainingChannelName = "training"

// SageMakerBackend submits fine-tuning jobs to Amazon SageMaker.
type SageMakerBackend struct {
	client *sagemaker.Client
	log    *zap.SugaredLogger
}

// NewSageMakerBackend creates a backend over an AWS config.
func NewSageMakerBackend(cfg aws.Config, log *zap.SugaredLogger) *SageMakerBackend {
	return &SageMakerBackend{
		client: sagemaker.NewFromConfig(cfg),
		log:    log,
	}
}

// SubmitTrainingJob creates the remote training job. Failures come back as
// *SubmitError with the rejection classified.
func (b *SageMakerBackend) SubmitTrainingJob(ctx context.Context, spec JobSpec) error {
	input := &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.Name),
		RoleArn:         aws.String(spec.RoleARN),
		AlgorithmSpecification: &types.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.TrainingImage),
			TrainingInputMode: types.TrainingInputModeFile,
		},
		InputDataConfig: []types.Channel{
			{
				ChannelName:     aws.String(trainingChannelName),
				ContentType:     aws.String("application/jsonlines"),
				CompressionType: types.CompressionTypeNone,
				DataSource: &types.DataSource{
					S3DataSource: &types.S3DataSource{
						S3DataType:             types.S3DataTypeS3Prefix,
						S3Uri:                  aws.String(spec.InputDataURI),
						S3DataDistributionType: types.S3DataDistributionFullyReplicated,
					},
				},
			},
		},
		OutputDataConfig: &types.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputURI),
		},
		ResourceConfig: &types.ResourceConfig{
			InstanceType:   types.TrainingInstanceType(spec.ProfileID),
			InstanceCount:  aws.Int32(1),
			VolumeSizeInGB: aws.Int32(50),
		},
		StoppingCondition: &types.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(spec.MaxRuntime.Seconds())),
		},
		HyperParameters: spec.Hyperparameters,
	}

	if _, err := b.client.CreateTrainingJob(ctx, input); err != nil {
		return b.classify(spec.ProfileID, err)
	}
	b.log.Infof("Training job submitted: %s (profile: %s)", spec.Name, spec.ProfileID)
	return nil
}

// classify maps an SDK error onto a rejection kind. A timed-out submit stops
// the fallback chain rather than advancing it, so it classifies as Other.
func (b *SageMakerBackend) classify(profile string, err error) *SubmitError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &SubmitError{Kind: RejectionOther, Profile: profile, Err: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == errCodeResourceLimitExceeded {
			return &SubmitError{Kind: RejectionQuota, Profile: profile, Err: err}
		}
		return &SubmitError{Kind: RejectionOther, Profile: profile, Err: err}
	}
	// No service response at all: transport-level failure.
	return &SubmitError{Kind: RejectionUnreachable, Profile: profile, Err: err}
}

// DescribeTrainingJob fetches the remote job's current state.
func (b *SageMakerBackend) DescribeTrainingJob(ctx context.Context, name string) (*JobDescription, error) {
	out, err := b.client.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe training job %s: %w", name, err)
	}

	desc := &JobDescription{
		Status:    string(out.TrainingJobStatus),
		StartedAt: out.TrainingStartTime,
		EndedAt:   out.TrainingEndTime,
	}
	if out.FailureReason != nil {
		desc.FailureReason = *out.FailureReason
	}
	if out.ModelArtifacts != nil && out.ModelArtifacts.S3ModelArtifacts != nil {
		desc.ArtifactURI = *out.ModelArtifacts.S3ModelArtifacts
	}
	return desc, nil
}

// StopTrainingJob asks the backend to terminate the job. Confirmation
// arrives asynchronously through DescribeTrainingJob.
func (b *SageMakerBackend) StopTrainingJob(ctx context.Context, name string) error {
	if _, err := b.client.StopTrainingJob(ctx, &sagemaker.StopTrainingJobInput{
		TrainingJobName: aws.String(name),
	}); err != nil {
		return fmt.Errorf("failed to stop training job %s: %w", name, err)
	}
	b.log.Infof("Stop requested for training job: %s", name)
	return nil
}
