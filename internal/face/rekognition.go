package face

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// RekognitionAPI is the subset of the Rekognition client used here.
type RekognitionAPI interface {
	CreateCollection(ctx context.Context, in *rekognition.CreateCollectionInput, opts ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
	DescribeCollection(ctx context.Context, in *rekognition.DescribeCollectionInput, opts ...func(*rekognition.Options)) (*rekognition.DescribeCollectionOutput, error)
	IndexFaces(ctx context.Context, in *rekognition.IndexFacesInput, opts ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	DeleteFaces(ctx context.Context, in *rekognition.DeleteFacesInput, opts ...func(*rekognition.Options)) (*rekognition.DeleteFacesOutput, error)
	SearchFacesByImage(ctx context.Context, in *rekognition.SearchFacesByImageInput, opts ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
}

// Rekognition keeps the gallery in an AWS Rekognition collection.
type Rekognition struct {
	api        RekognitionAPI
	collection string
}

// NewRekognition creates a recognizer over collection.
func NewRekognition(api RekognitionAPI, collection string) *Rekognition {
	return &Rekognition{api: api, collection: collection}
}

// EnsureCollection creates the collection unless it already exists.
func (r *Rekognition) EnsureCollection(ctx context.Context) error {
	_, err := r.api.CreateCollection(ctx, &rekognition.CreateCollectionInput{CollectionId: aws.String(r.collection)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create collection %s: %w", r.collection, err)
	}
	return nil
}

func (r *Rekognition) Index(ctx context.Context, externalID string, image []byte) (string, error) {
	out, err := r.api.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:    aws.String(r.collection),
		Image:           &types.Image{Bytes: image},
		ExternalImageId: aws.String(externalID),
		MaxFaces:        aws.Int32(1),
		QualityFilter:   types.QualityFilterAuto,
	})
	if err != nil {
		return "", mapRekognitionErr(err)
	}
	if len(out.FaceRecords) == 0 || out.FaceRecords[0].Face == nil {
		return "", ErrNoFace
	}
	return aws.ToString(out.FaceRecords[0].Face.FaceId), nil
}

func (r *Rekognition) Search(ctx context.Context, image []byte) (*Match, error) {
	out, err := r.api.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId: aws.String(r.collection),
		Image:        &types.Image{Bytes: image},
		MaxFaces:     aws.Int32(1),
	})
	if err != nil {
		return nil, mapRekognitionErr(err)
	}
	if len(out.FaceMatches) == 0 || out.FaceMatches[0].Face == nil {
		return nil, nil
	}
	best := out.FaceMatches[0]
	return &Match{
		FaceID:     aws.ToString(best.Face.FaceId),
		ExternalID: aws.ToString(best.Face.ExternalImageId),
		Similarity: float64(aws.ToFloat32(best.Similarity)),
	}, nil
}

func (r *Rekognition) Remove(ctx context.Context, faceID string) error {
	_, err := r.api.DeleteFaces(ctx, &rekognition.DeleteFacesInput{
		CollectionId: aws.String(r.collection),
		FaceIds:      []string{faceID},
	})
	if err != nil {
		return fmt.Errorf("rekognition delete face %s: %w", faceID, err)
	}
	return nil
}

func (r *Rekognition) Health(ctx context.Context) error {
	_, err := r.api.DescribeCollection(ctx, &rekognition.DescribeCollectionInput{CollectionId: aws.String(r.collection)})
	return err
}

// Rekognition reports a photo without faces as an invalid parameter.
func mapRekognitionErr(err error) error {
	var invalid *types.InvalidParameterException
	if errors.As(err, &invalid) {
		return ErrNoFace
	}
	return fmt.Errorf("rekognition: %w", err)
}
