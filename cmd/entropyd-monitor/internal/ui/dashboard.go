package ui

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"entropyd/cmd/entropyd-monitor/internal/poller"
)

// Dashboard is the main UI component. It owns no network state; the
// caller feeds it snapshots via SetSnapshot from the poller goroutine.
type Dashboard struct {
	theme *Theme

	list widget.List

	snapshot poller.Snapshot
}

// NewDashboard creates a new dashboard.
func NewDashboard(t *Theme) *Dashboard {
	return &Dashboard{
		theme: t,
		list: widget.List{
			List: layout.List{Axis: layout.Vertical},
		},
	}
}

// SetSnapshot installs the latest poll result for the next Layout call.
func (d *Dashboard) SetSnapshot(s poller.Snapshot) {
	d.snapshot = s
}

// Layout renders the dashboard.
func (d *Dashboard) Layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, d.theme.Palette.Background)

	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Min.X = gtx.Dp(220)
			gtx.Constraints.Max.X = gtx.Dp(220)
			return d.layoutSidebar(gtx)
		}),

		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			size := image.Pt(gtx.Dp(1), gtx.Constraints.Max.Y)
			rect := clip.Rect{Max: size}.Op()
			paint.FillShape(gtx.Ops, d.theme.Palette.Border, rect)
			return layout.Dimensions{Size: size}
		}),

		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return d.layoutContent(gtx)
		}),
	)
}

func (d *Dashboard) layoutSidebar(gtx layout.Context) layout.Dimensions {
	return layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				title := material.H6(d.theme.Theme, "ENTROPYD")
				title.Color = d.theme.Palette.Primary
				title.TextSize = d.theme.Config.FontTitle
				return title.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				var status string
				col := d.theme.Palette.TextMuted
				if d.snapshot.Err != nil {
					status, col = "disconnected", d.theme.Palette.Error
				} else if !d.snapshot.At.IsZero() {
					status, col = "connected", d.theme.Palette.Success
				} else {
					status = "connecting"
				}
				l := material.Caption(d.theme.Theme, status)
				l.Color = col
				return l.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(32)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return layout.Dimensions{Size: gtx.Constraints.Max}
			}),
		)
	})
}

func (d *Dashboard) layoutContent(gtx layout.Context) layout.Dimensions {
	return layout.UniformInset(d.theme.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				h := material.H5(d.theme.Theme, "Source Health")
				h.Color = d.theme.Palette.Text
				return h.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				if d.snapshot.Err != nil {
					return d.drawMessage(gtx, d.snapshot.Err.Error(), d.theme.Palette.Error)
				}
				if len(d.snapshot.Sources) == 0 {
					return d.drawMessage(gtx, "waiting for data", d.theme.Palette.TextMuted)
				}
				return d.layoutSourceList(gtx)
			}),
		)
	})
}

func (d *Dashboard) layoutSourceList(gtx layout.Context) layout.Dimensions {
	return d.list.List.Layout(gtx, len(d.snapshot.Sources), func(gtx layout.Context, i int) layout.Dimensions {
		s := d.snapshot.Sources[i]
		return layout.Inset{Bottom: d.theme.Config.Spacing}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			return d.layoutSourceRow(gtx, s)
		})
	})
}

func (d *Dashboard) layoutSourceRow(gtx layout.Context, s poller.SourceStat) layout.Dimensions {
	size := image.Pt(gtx.Constraints.Max.X, gtx.Dp(64))
	rect := clip.UniformRRect(image.Rectangle{Max: size}, int(gtx.Dp(d.theme.Config.CornerRadius))).Op(gtx.Ops)
	paint.FillShape(gtx.Ops, d.theme.Palette.Surface, rect)

	return layout.UniformInset(unit.Dp(12)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						l := material.Body1(d.theme.Theme, s.ID)
						l.Color = d.theme.Palette.Text
						return l.Layout(gtx)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						l := material.Caption(d.theme.Theme, fmt.Sprintf("%d / %d bytes passed", s.BytesPassed, s.BytesAnalysed))
						l.Color = d.theme.Palette.TextMuted
						return l.Layout(gtx)
					}),
				)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return d.layoutBadge(gtx, "FIPS", s.FIPS)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(12)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return d.layoutBadge(gtx, "QA", s.QA)
			}),
		)
	})
}

func (d *Dashboard) layoutBadge(gtx layout.Context, label string, ok bool) layout.Dimensions {
	col := d.theme.Palette.Error
	text := label + " FAIL"
	if ok {
		col, text = d.theme.Palette.Success, label+" OK"
	}
	l := material.Caption(d.theme.Theme, text)
	l.Color = col
	return l.Layout(gtx)
}

func (d *Dashboard) drawMessage(gtx layout.Context, msg string, col color.NRGBA) layout.Dimensions {
	return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		l := material.Body1(d.theme.Theme, msg)
		l.Color = col
		return l.Layout(gtx)
	})
}
