package wire

import (
	"Clubline/internal/api"
	"Clubline/internal/api/config"
	"Clubline/internal/api/handler"
	"Clubline/internal/job"
	"Clubline/internal/pkg/cron"
	"Clubline/internal/pkg/feed"
	"Clubline/internal/pkg/kafka"
	"Clubline/internal/pkg/llm"
	"Clubline/internal/pkg/mongo"
	"Clubline/internal/repository"
	"Clubline/internal/service"

	"github.com/gin-gonic/gin"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router   *gin.Engine
	DB       *gorm.DB
	CronMgr  *cron.Manager
	Notifier *kafka.NotifyProducer
}

func BuildApplication(db *gorm.DB, mongoDB *mongodriver.Database, cfg *config.Config) (*ApplicationContainer, error) {
	convRepo := repository.NewConversationRepo(db)
	typingRepo := repository.NewTypingRepo()
	msgRepo := mongo.NewMessageRepo(mongoDB)

	publisher := feed.NewPublisher()

	notifier, err := kafka.NewNotifyProducer(cfg.Kafka, cfg.KafkaNotifier.Topic)
	if err != nil {
		return nil, err
	}

	convService := service.NewConversationService(convRepo, publisher)
	msgService := service.NewMessageService(msgRepo, convRepo, publisher, notifier)
	typingService := service.NewTypingService(typingRepo, publisher)
	chatService := service.NewChatService(convService, msgService, typingService)

	broker := feed.NewBroker(feed.NewRedisBus(), chatService, chatService, chatService)

	responder := llm.NewResponder()

	handlers := &api.HandlersGroup{
		ConversationHandler: handler.NewConversationHandler(chatService),
		IMHandler:           handler.NewIMHandler(chatService, responder),
		MediaHandler:        handler.NewMediaHandler(),
		WsHandler:           handler.NewWsHandler(broker),
	}

	router := api.SetupRouter(handlers)

	calibrationJob := job.NewConversationCalibrationJob(convRepo, msgRepo)
	cronMgr := cron.NewCronManager(calibrationJob)

	return &ApplicationContainer{
		Router:   router,
		DB:       db,
		CronMgr:  cronMgr,
		Notifier: notifier,
	}, nil
}
