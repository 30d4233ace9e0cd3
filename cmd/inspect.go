package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"envmon_dashboard/internal/config"
	"envmon_dashboard/internal/controller"
	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/models"

	"github.com/spf13/cobra"
)

func newDevicesCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List devices known to the device server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gw := gateway.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, nil)
			devices, err := gw.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}
}

func printDevices(out io.Writer, devices []models.Device) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tONLINE\tBLE\tMQTT")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, yesNo(d.Online), yesNo(d.HasBLE), yesNo(d.HasMQTT))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newStateCmd(load func() (*config.Config, error)) *cobra.Command {
	var device, sensor string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Refresh one sensor once and print its phase, mode and remaining time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			kind, err := models.ParseSensorKind(sensor)
			if err != nil {
				return err
			}
			if device == "" {
				device = cfg.Controller.DefaultDevice
			}
			gw := gateway.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, nil)
			v, err := readState(cmd.Context(), gw, kind, device)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "device id (default: controller.default_device)")
	cmd.Flags().StringVar(&sensor, "sensor", "mq2", "sensor kind: mq2, bmp180, bh1750, ble, oled")
	return cmd
}

// readState runs a single refresh through a throwaway controller, so the
// output is derived exactly as a panel would show it.
func readState(ctx context.Context, gw gateway.Gateway, kind models.SensorKind, device string) (models.View, error) {
	c, err := controller.New(kind, device, controller.Config{Gateway: gw, Log: logger.Nop()})
	if err != nil {
		return models.View{}, err
	}
	defer c.Close()
	if err := c.Refresh(ctx); err != nil {
		return c.View(), err
	}
	return c.View(), nil
}

func printState(out io.Writer, v models.View) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "device:\t%s\n", v.Identity.DeviceID)
	fmt.Fprintf(tw, "sensor:\t%s\n", v.Identity.Kind)
	fmt.Fprintf(tw, "phase:\t%s\n", v.State.Phase)
	if v.ModeAware && v.State.Mode != "" {
		fmt.Fprintf(tw, "mode:\t%s\n", controller.ModeName(v.State.Mode))
	}
	fmt.Fprintf(tw, "state:\t%s\n", v.State.BinaryState)
	if v.State.PhaseMessage != "" {
		fmt.Fprintf(tw, "message:\t%s\n", v.State.PhaseMessage)
	}
	fmt.Fprintf(tw, "remaining:\t%s\n", v.Remaining)
	return tw.Flush()
}
