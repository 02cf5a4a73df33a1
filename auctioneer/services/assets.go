package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SpacesService serves player headshots from a DigitalOcean Spaces bucket.
// It satisfies the engine's asset resolver so lot reveals can carry a
// ready-to-render image URL.
type SpacesService struct {
	client    *s3.Client
	bucket    string
	region    string
	ImageRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, imageRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &SpacesService{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    region,
		ImageRoot: strings.TrimPrefix(imageRoot, "/"),
	}, nil
}

// ImageURL builds the CDN URL for a stored image key. Keys are stored
// relative to ImageRoot.
func (s *SpacesService) ImageURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.ImageRoot != "" {
		key = s.ImageRoot + "/" + key
	}
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", s.bucket, s.region, key)
}

// HasImage checks that the object actually exists before a roster import
// records its key.
func (s *SpacesService) HasImage(ctx context.Context, key string) bool {
	key = strings.TrimPrefix(key, "/")
	if s.ImageRoot != "" {
		key = s.ImageRoot + "/" + key
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err == nil
}

