package main

import (
	"fmt"

	"github.com/Yulian302/lfusys-services-uploads/caching"
	"github.com/Yulian302/lfusys-services-uploads/handlers"
	"github.com/Yulian302/lfusys-services-uploads/queues"
	"github.com/Yulian302/lfusys-services-uploads/services"
	"github.com/Yulian302/lfusys-services-uploads/store"
)

type Stores struct {
	sessions store.SessionStore
	files    store.FileStore
}

type Services struct {
	Uploads services.UploadService
	Files   services.FileService

	Stores *Stores

	UploadHandler *handlers.HttpHandler
}

func BuildServices(app *App) *Services {
	storageCfg := app.Config.StorageConfig

	var sessionStore store.SessionStore
	var fileStore store.FileStore
	if storageCfg.Backend == "memory" {
		sessionStore = store.NewMemorySessionStore()
		fileStore = store.NewMemoryFileStore()
	} else {
		sessionStore = store.NewSessionStoreImpl(app.DynamoDB, app.Config.DynamoDBConfig.SessionsTableName)
		fileStore = store.NewDynamoDbFileStoreImpl(app.DynamoDB, app.Config.DynamoDBConfig.FilesTableName)
	}

	chunkStore := store.NewDiskChunkStore(storageCfg.ChunkUploadDir, app.Logger)

	var fileStorage store.FileStorage
	if storageCfg.Backend == "s3" {
		fileStorage = store.NewS3FileStorageImpl(app.S3, storageCfg.S3Bucket, app.Logger)
	} else {
		fileStorage = store.NewLocalFileStorage(storageCfg.UploadDir, app.Logger)
	}

	var cachingSvc caching.CachingService = caching.NewNullCachingService()
	if app.Redis != nil {
		cachingSvc = caching.NewRedisCachingService(app.Redis)
	}

	var notifier queues.UploadsNotifier = queues.NewNullUploadsNotifier()
	if app.Sqs != nil && app.Config.AWSConfig.AccountID != "" {
		queueUrl := fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s",
			app.Config.AWSConfig.Region,
			app.Config.AWSConfig.AccountID,
			app.Config.ServiceConfig.UploadsNotificationsQueueName,
		)
		notifier = queues.NewSqsUploadsNotifier(app.Sqs, queueUrl)
	}

	uploadSvc := services.NewUploadServiceImpl(
		sessionStore,
		chunkStore,
		fileStorage,
		fileStore,
		notifier,
		cachingSvc,
		app.Logger,
	)
	fileSvc := services.NewFileServiceImpl(fileStore, fileStorage, cachingSvc, app.Logger)

	handler := handlers.NewHttpHandler(uploadSvc, fileSvc, app.Logger)

	return &Services{
		Uploads: uploadSvc,
		Files:   fileSvc,

		Stores: &Stores{
			sessions: sessionStore,
			files:    fileStore,
		},

		UploadHandler: handler,
	}
}
