// Command addplayer registers a player for correlation: it validates the osu
// id against the osu! API, resolves the Twitch login to a user id via Helix,
// and inserts the player row. Pipeline cycles only act on registered players.
//
// Usage:
//
//	addplayer -osu-id 7562902 -twitch mrekkosu
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/playmark/config"
	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/osuapi"
	"github.com/onnwee/playmark/twitchapi"
)

func main() {
	osuID := flag.String("osu-id", "", "osu! user id (numeric)")
	twitchLogin := flag.String("twitch", "", "Twitch login of the player's channel")
	flag.Parse()
	if *osuID == "" || *twitchLogin == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	existing, err := db.GetPlayerByOsuID(ctx, database, *osuID)
	if err != nil {
		slog.Error("player lookup failed", slog.Any("err", err))
		os.Exit(1)
	}
	if existing != nil {
		slog.Error("player already registered",
			slog.String("osu_id", existing.OsuID), slog.String("osu_name", existing.OsuName))
		os.Exit(1)
	}

	osu := &osuapi.Client{TokenSource: osuapi.NewTokenSource(database, cfg.OsuClientID, cfg.OsuClientSecret, "")}
	osuName, err := osu.GetUsername(ctx, *osuID)
	if err != nil {
		slog.Error("osu user lookup failed", slog.String("osu_id", *osuID), slog.Any("err", err))
		os.Exit(1)
	}

	helix := &twitchapi.HelixClient{
		TokenSource: twitchapi.NewTokenSource(database, cfg.TwitchClientID, cfg.TwitchClientSecret, ""),
		ClientID:    cfg.TwitchClientID,
	}
	user, err := helix.GetUserByLogin(ctx, *twitchLogin)
	if err != nil {
		slog.Error("twitch user lookup failed", slog.String("login", *twitchLogin), slog.Any("err", err))
		os.Exit(1)
	}

	player := &db.Player{OsuID: *osuID, OsuName: osuName, TwitchID: user.ID, TwitchName: user.Login}
	if err := db.InsertPlayer(ctx, database, player); err != nil {
		slog.Error("player insert failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("player registered",
		slog.Int64("id", player.ID),
		slog.String("osu_id", player.OsuID), slog.String("osu_name", player.OsuName),
		slog.String("twitch_id", player.TwitchID), slog.String("twitch_login", player.TwitchName))
}
