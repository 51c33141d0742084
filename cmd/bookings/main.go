package main

import (
	"hulu/internal/bookings/handler"
	bookingsrepo "hulu/internal/bookings/repository"
	"hulu/internal/bookings/service"
	"hulu/internal/bookings/validator"
	"hulu/internal/events"
	inventoryhandler "hulu/internal/inventory/handler"
	inventoryrepo "hulu/internal/inventory/repository"
	inventoryservice "hulu/internal/inventory/service"
	inventoryvalidator "hulu/internal/inventory/validator"
	"hulu/internal/release"
	reservationsrepo "hulu/internal/reservations/repository"
	reservationservice "hulu/internal/reservations/service"
	"hulu/pkg/app"
	"hulu/pkg/config"
	"hulu/pkg/contracts"
)

const ServiceName = "bookings"

type services struct {
	bookings  service.BookingService
	roomTypes inventoryservice.RoomTypeService
	sweeper   *release.Sweeper
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")
	publisher, closePublisher := events.Setup(cfg, ServiceName)
	defer closePublisher()

	svcs := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.AddWorker(svcs.sweeper)
	serverApp.SetApp(contracts.Handlers{
		handler.NewBookingHandler(svcs.bookings, cfg.Log),
		inventoryhandler.NewRoomTypeHandler(svcs.roomTypes, cfg.Log),
	})
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) services {
	roomTypeRepo := inventoryrepo.NewMongoRoomTypeRepository(cfg)
	reservationRepo := reservationsrepo.NewMongoReservationRepository(cfg)
	releaseTaskRepo := reservationsrepo.NewMongoReleaseTaskRepository(cfg)
	locker := reservationservice.NewRoomTypeLocker(reservationsrepo.NewMongoInventoryLockRepository(cfg), cfg)

	roomTypeService := inventoryservice.NewRoomTypeService(
		roomTypeRepo,
		reservationRepo,
		locker,
		publisher,
		inventoryvalidator.NewRoomTypeValidator(cfg.Log),
		cfg,
	)
	reservationService := reservationservice.NewReservationService(
		reservationRepo,
		releaseTaskRepo,
		roomTypeRepo,
		locker,
		publisher,
		cfg,
	)
	bookingService := service.NewBookingService(
		bookingsrepo.NewMongoBookingRepository(cfg),
		reservationService,
		roomTypeService,
		publisher,
		validator.NewBookingValidator(cfg.Log, cfg.MaxRoomsPerBooking, cfg.MaxStayNights),
		cfg,
	)
	sweeper := release.NewSweeper(releaseTaskRepo, reservationService, cfg)

	cfg.Log.Info("Booking service initialized",
		"database", cfg.MongoDatabaseName,
		"release_sweep_interval", cfg.ReleaseSweepInterval,
	)
	return services{
		bookings:  bookingService,
		roomTypes: roomTypeService,
		sweeper:   sweeper,
	}
}
