package sthree

import (
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/nc6/cvmfs/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const defaultRegion = "us-east-1"

// Config of an S3 endpoint, as found in the S3 config file of an upstream definition
type Config struct {
	Host      string
	Port      int
	AccessKey string
	SecretKey string
	Region    string
	UseHTTPS  bool
}

// LoadConfig reads an S3 config file made of KEY=value lines:
//
//	CVMFS_S3_HOST=s3.example.org
//	CVMFS_S3_PORT=443
//	CVMFS_S3_ACCESS_KEY=...
//	CVMFS_S3_SECRET_KEY=...
//	CVMFS_S3_REGION=eu-west-1
//	CVMFS_S3_USE_HTTPS=true
func LoadConfig(fs afero.Fs, file string) (Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(file)
	v.SetConfigType("env")
	v.SetDefault("CVMFS_S3_REGION", defaultRegion)
	v.SetDefault("CVMFS_S3_USE_HTTPS", true)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, status.ErrInvalidConfig.Wrapf("reading S3 config %s: %v", file, err)
	}
	cfg := Config{
		Host:      v.GetString("CVMFS_S3_HOST"),
		Port:      v.GetInt("CVMFS_S3_PORT"),
		AccessKey: v.GetString("CVMFS_S3_ACCESS_KEY"),
		SecretKey: v.GetString("CVMFS_S3_SECRET_KEY"),
		Region:    v.GetString("CVMFS_S3_REGION"),
		UseHTTPS:  v.GetBool("CVMFS_S3_USE_HTTPS"),
	}
	if cfg.Host == "" {
		return Config{}, status.ErrInvalidConfig.Wrapf("%s: CVMFS_S3_HOST is required", filepath.Base(file))
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return Config{}, status.ErrInvalidConfig.Wrapf("%s: CVMFS_S3_ACCESS_KEY and CVMFS_S3_SECRET_KEY are required", filepath.Base(file))
	}
	return cfg, nil
}

// Endpoint URL of the S3 service
func (c Config) Endpoint() string {
	scheme := "http"
	if c.UseHTTPS {
		scheme = "https"
	}
	if c.Port == 0 {
		return scheme + "://" + c.Host
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// AWS configuration for this endpoint, with path-style addressing
func (c Config) AWS() *aws.Config {
	return aws.NewConfig().
		WithEndpoint(c.Endpoint()).
		WithRegion(c.Region).
		WithS3ForcePathStyle(true).
		WithCredentials(credentials.NewStaticCredentials(c.AccessKey, c.SecretKey, ""))
}
