package services

import (
	"log/slog"

	"github.com/curaious/chrono/internal/config"
	"github.com/curaious/chrono/internal/db"
	"github.com/curaious/chrono/internal/mailer"
	project2 "github.com/curaious/chrono/internal/services/project"
	task2 "github.com/curaious/chrono/internal/services/task"
	user2 "github.com/curaious/chrono/internal/services/user"
)

type Services struct {
	User    *user2.UserService
	Project *project2.ProjectService
	Task    *task2.TaskService
}

func NewServices(conf *config.Config) *Services {
	dbconn := db.NewConn(conf)

	userSvc := user2.NewUserService(user2.NewUserRepo(dbconn))
	projectSvc := project2.NewProjectService(project2.NewProjectRepo(dbconn))

	// A nil notifier disables backdated-task emails; the lifecycle engine
	// treats dispatch as best effort either way.
	var notifier task2.Notifier
	if m := mailer.New(conf); m != nil {
		notifier = m
		slog.Info("Backdated task notifications enabled", slog.String("smtp_host", conf.SMTP_HOST))
	} else {
		slog.Info("SMTP not configured, backdated task notifications disabled")
	}

	taskSvc := task2.NewTaskService(task2.NewTaskRepo(dbconn), userSvc, projectSvc, notifier)

	return &Services{
		User:    userSvc,
		Project: projectSvc,
		Task:    taskSvc,
	}
}
