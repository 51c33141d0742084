package main

import (
	"hulu/internal/events"
	"hulu/internal/inventory/handler"
	inventoryrepo "hulu/internal/inventory/repository"
	"hulu/internal/inventory/service"
	"hulu/internal/inventory/validator"
	reservationsrepo "hulu/internal/reservations/repository"
	reservationservice "hulu/internal/reservations/service"
	"hulu/pkg/app"
	"hulu/pkg/config"
)

const ServiceName = "rooms"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Rooms service")
	publisher, closePublisher := events.Setup(cfg, ServiceName)
	defer closePublisher()

	roomTypeService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewRoomTypeHandler(roomTypeService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.RoomTypeService {
	roomTypeValidator := validator.NewRoomTypeValidator(cfg.Log)
	roomTypeRepo := inventoryrepo.NewMongoRoomTypeRepository(cfg)
	ledger := reservationsrepo.NewMongoReservationRepository(cfg)
	locker := reservationservice.NewRoomTypeLocker(reservationsrepo.NewMongoInventoryLockRepository(cfg), cfg)

	roomTypeService := service.NewRoomTypeService(
		roomTypeRepo,
		ledger,
		locker,
		publisher,
		roomTypeValidator,
		cfg,
	)

	cfg.Log.Info("Rooms service initialized", "database", cfg.MongoDatabaseName)
	return roomTypeService
}
