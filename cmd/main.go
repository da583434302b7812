package main

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"studentsystem/internal/config"
	"studentsystem/internal/handler"
	"studentsystem/internal/metrics"
	"studentsystem/internal/service"
	"studentsystem/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using environment")
	}
	cfg := config.Load()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	metrics.Init()

	// Open the record store; the backing file is created lazily on the
	// first mutation.
	st, err := store.Open(cfg.DataFile)
	if err != nil {
		log.Fatalf("failed to open record store %s: %v", cfg.DataFile, err)
	}
	metrics.SetRecords(st.Count())
	log.WithFields(log.Fields{"file": cfg.DataFile, "records": st.Count()}).Info("record store opened")

	// Initialize services
	studentService := service.NewStudentService(st)
	importService := service.NewImportService(st)

	// Initialize handlers
	studentHandler := handler.NewStudentHandler(studentService)
	importHandler := handler.NewImportHandler(importService, cfg.UploadDir)
	progressHandler := handler.NewProgressHandler(importService)

	// Setup router
	r := mux.NewRouter()

	r.HandleFunc("/students", studentHandler.ListStudents).Methods("GET")
	r.HandleFunc("/students", studentHandler.CreateStudent).Methods("POST")
	r.HandleFunc("/students/{id}", studentHandler.GetStudent).Methods("GET")
	r.HandleFunc("/students/{id}", studentHandler.UpdateStudent).Methods("PUT")
	r.HandleFunc("/students/{id}", studentHandler.DeleteStudent).Methods("DELETE")

	r.HandleFunc("/upload", importHandler.UploadCSV).Methods("POST")
	r.HandleFunc("/progress", progressHandler.GetAllProgress).Methods("GET")
	r.HandleFunc("/progress/file", progressHandler.GetFileProgress).Methods("GET")
	r.HandleFunc("/progress/stream", progressHandler.StreamProgress).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.CORSOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	log.Infof("server listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, cors(r)); err != nil {
		log.Fatal(err)
	}
}
