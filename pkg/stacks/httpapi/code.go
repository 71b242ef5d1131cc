package httpapi

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/jsii-runtime-go"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

func getCode(stack awscdk.Stack, props StackProps, code topology.Code) awslambda.Code {
	if code.LocalPath != "" {
		return getLocalCode(code.LocalPath)
	}
	return getCodeFromS3(stack, props, code.S3Key)
}

func getLocalCode(localPath string) awslambda.Code {
	return awslambda.Code_FromAsset(
		jsii.String(localPath),
		&awss3assets.AssetOptions{},
	)
}

func getCodeFromS3(stack awscdk.Stack, props StackProps, s3FileName string) awslambda.Code {
	return awslambda.Code_FromBucket(
		awss3.Bucket_FromBucketName(
			stack,
			jsii.String("S3Bucket"+s3FileName),
			jsii.String(props.S3BucketName+"-"+*stack.Region()),
		),
		jsii.String(s3FileName),
		nil,
	)
}

// functionCode picks the local zip when given, the versioned S3 object otherwise.
func functionCode(localZip, s3Prefix string, props StackProps) topology.Code {
	if localZip != "" {
		return topology.Code{LocalPath: localZip}
	}
	return topology.Code{S3Key: s3Prefix + props.Version + ".zip"}
}
