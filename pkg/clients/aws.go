package clients

import (
	"context"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/jimlawless/whereami"
)

// NewSTSClient создаёт STS-клиент для получения временных учётных данных.
func NewSTSClient(ctx context.Context, region string) (*sts.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return sts.NewFromConfig(cfg), nil
}

// NewSageMakerRuntime создаёт клиент SageMaker Runtime,
// авторизованный временными учётными данными из AssumeRole.
func NewSageMakerRuntime(creds aws.Credentials, region string) *sagemakerruntime.Client {
	cfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		),
	}

	return sagemakerruntime.NewFromConfig(cfg)
}
